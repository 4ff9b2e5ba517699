package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/twaplab/hltwap/internal/domain"
)

// Reader lists and retrieves raw objects from the fills bucket, attaching the
// requester-pays billing mode to every call.
type Reader struct {
	client *s3.Client
	bucket string
	payer  types.RequestPayer
}

// NewReader creates a new Reader bound to the given client's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{
		client: c.S3(),
		bucket: c.Bucket(),
		payer:  c.RequestPayer(),
	}
}

// Get retrieves the object at the given key and returns its body as an
// io.ReadCloser. The caller is responsible for closing the returned reader.
// Returns domain.ErrNotFound if the object does not exist.
func (r *Reader) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	output, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       aws.String(r.bucket),
		Key:          aws.String(key),
		RequestPayer: r.payer,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	return output.Body, nil
}

// List returns metadata for all objects whose key starts with the given
// prefix and whose modification time lies in (after, before]. A zero after
// or before leaves that side unbounded. Pagination is handled transparently,
// following ContinuationTokens until all matching objects have been
// collected; only one remote page is held at a time.
func (r *Reader) List(ctx context.Context, prefix string, after, before time.Time) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket:       aws.String(r.bucket),
		Prefix:       aws.String(prefix),
		RequestPayer: r.payer,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list prefix %s: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			var lastModified time.Time
			if obj.LastModified != nil {
				lastModified = obj.LastModified.UTC()
			}

			if !after.IsZero() && !lastModified.After(after) {
				continue
			}
			if !before.IsZero() && lastModified.After(before) {
				continue
			}

			infos = append(infos, domain.BlobInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: lastModified,
			})
		}
	}

	return infos, nil
}

// isNotFound returns true when the error indicates the requested S3 object
// does not exist. It checks for both the SDK typed error (NoSuchKey) and
// the generic 404 response.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// Fallback: some S3-compatible providers return a ResponseError with
	// HTTP 404. We check via the smithy HTTP response interface.
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404 {
		return true
	}

	return false
}
