package classroom

import (
	"context"
	"fmt"
	"log/slog"
)

// MaxPageSize is the largest pageSize the list endpoints accept.
const MaxPageSize = 100

// Page is one page of a cursor-paged listing. An empty NextPageToken
// means the listing is complete.
type Page[T any] struct {
	Items         []T
	NextPageToken string
}

// PageFunc fetches the page addressed by pageToken ("" for the first page).
type PageFunc[T any] func(ctx context.Context, pageToken string) (Page[T], error)

// Drain follows nextPageToken cursors until the service stops returning
// one and concatenates every page in server order. A cursor that repeats
// is reported as an error instead of looping forever.
func Drain[T any](ctx context.Context, fetch PageFunc[T], logger *slog.Logger) ([]T, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		all   []T
		token string
		page  = 1
		seen  = make(map[string]bool)
	)

	for {
		p, err := fetch(ctx, token)
		if err != nil {
			return nil, err
		}

		all = append(all, p.Items...)

		logger.Debug("fetched page",
			slog.Int("page", page),
			slog.Int("count", len(p.Items)),
			slog.Int("total", len(all)),
			slog.Bool("has_next", p.NextPageToken != ""),
		)

		if p.NextPageToken == "" {
			return all, nil
		}

		if seen[p.NextPageToken] {
			return nil, fmt.Errorf("classroom: page token repeated after page %d", page)
		}

		seen[p.NextPageToken] = true
		token = p.NextPageToken
		page++
	}
}

// clampPageSize keeps a requested page size within the API's bounds.
func clampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}

	return n
}
