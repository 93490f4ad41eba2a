package pagination

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
)

// PageInfo is the GraphQL connection page marker.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Connection is a GraphQL connection reduced to its nodes.
type Connection[T any] struct {
	Nodes    []T      `json:"nodes"`
	PageInfo PageInfo `json:"pageInfo"`
}

// Fetch loads the page that starts after cursor. The first call gets "".
type Fetch[T any] func(ctx context.Context, after string) (Connection[T], error)

// Collect follows endCursor while hasNextPage holds and returns every node.
// A page that claims more results without advancing the cursor is an error.
func Collect[T any](ctx context.Context, fetch Fetch[T]) ([]T, error) {
	var (
		all   []T
		after string
		seen  = map[string]struct{}{}
	)
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		conn, err := fetch(ctx, after)
		if err != nil {
			return all, err
		}
		all = append(all, conn.Nodes...)
		if !conn.PageInfo.HasNextPage {
			return all, nil
		}

		next := conn.PageInfo.EndCursor
		if next == "" {
			return all, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("page %d reported more results without an end cursor", page))
		}
		if _, dup := seen[next]; dup {
			return all, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("page %d repeated cursor %q", page, next))
		}
		seen[next] = struct{}{}
		after = next
	}
}

// OffsetPage is the REST query envelope used with PageStartIndex/PageSize.
type OffsetPage[T any] struct {
	Result      []T `json:"Result"`
	ResultCount int `json:"ResultCount"`
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultLimit
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
