package s3blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/twaplab/hltwap/internal/domain"
)

// FillSource exposes the node fills bucket as block-grouped batches of
// decompressed files. Keys follow the layout <prefix><block_number>/<file>,
// where block numbers are monotonically increasing numeric strings, so
// lexicographic block ordering is a proxy for chronological order.
type FillSource struct {
	reader *Reader
	prefix string
	logger *slog.Logger
}

// NewFillSource creates a FillSource reading objects under the given key
// prefix.
func NewFillSource(c *Client, prefix string, logger *slog.Logger) *FillSource {
	return &FillSource{
		reader: NewReader(c),
		prefix: prefix,
		logger: logger.With(slog.String("component", "fill_source")),
	}
}

// Fetch retrieves one object and returns its decompressed content. Transport
// and decompression failures both surface as domain.ErrObjectFetch; retry
// policy belongs to the caller.
func (f *FillSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	body, err := f.reader.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("s3blob: fetch %s: %w: %w", key, domain.ErrObjectFetch, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read %s: %w: %w", key, domain.ErrObjectFetch, err)
	}

	data, err := decompress(key, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrObjectFetch, err)
	}
	return data, nil
}

// ListBlocks returns the distinct block-group prefixes of all objects whose
// modification time lies in (after, before], sorted ascending by prefix
// string. A zero bound leaves that side open.
func (f *FillSource) ListBlocks(ctx context.Context, after, before time.Time) ([]string, error) {
	infos, err := f.reader.List(ctx, f.prefix, after, before)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list blocks: %w", err)
	}

	blocks := blockPrefixes(infos)
	f.logger.InfoContext(ctx, "listed fill blocks",
		slog.Int("objects", len(infos)),
		slog.Int("blocks", len(blocks)),
	)
	return blocks, nil
}

// FetchBlock lists and fetches every non-directory object under a block
// prefix. A failure fetching any one object aborts the whole block with a
// descriptive error.
func (f *FillSource) FetchBlock(ctx context.Context, blockPrefix string) ([]domain.BlobFile, error) {
	infos, err := f.reader.List(ctx, blockPrefix, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("s3blob: list block %s: %w", blockPrefix, err)
	}

	var files []domain.BlobFile
	for _, info := range infos {
		if strings.HasSuffix(info.Key, "/") {
			continue // directory marker
		}
		data, err := f.Fetch(ctx, info.Key)
		if err != nil {
			return nil, fmt.Errorf("s3blob: block %s: %w", blockPrefix, err)
		}
		files = append(files, domain.BlobFile{Key: info.Key, Data: data})
	}

	return files, nil
}

// blockPrefixes derives the distinct second-level path segment (the block
// grouping) from each object key and returns them sorted ascending.
func blockPrefixes(infos []domain.BlobInfo) []string {
	seen := make(map[string]struct{})
	for _, info := range infos {
		parts := strings.SplitN(info.Key, "/", 3)
		if len(parts) < 2 || parts[1] == "" {
			continue
		}
		seen[parts[0]+"/"+parts[1]+"/"] = struct{}{}
	}

	blocks := make([]string, 0, len(seen))
	for b := range seen {
		blocks = append(blocks, b)
	}
	sort.Strings(blocks)
	return blocks
}
