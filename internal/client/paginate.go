package client

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/atinyakov/HubViewer/internal/models"
)

const (
	// ListAllPageSize is the page size used when walking a whole listing.
	ListAllPageSize = 100

	// DefaultPage is the page ListPage fetches when none is given.
	DefaultPage = 1
	// DefaultPageSize is the page size ListPage uses when none is given.
	DefaultPageSize = 15
)

// pageResponse is one page as the registry returns it.
type pageResponse[T any] struct {
	Count   int     `json:"count"`
	Results []T     `json:"results"`
	Next    *string `json:"next"`
}

func withPage(params url.Values, page, pageSize int) url.Values {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	return q
}

// ListAll fetches every page of the listing at path and concatenates the
// results in page order. The loop stops once the count reported by the
// first page is reached or a page comes back empty. Once ctx is cancelled
// after the first page, the results gathered so far are returned without
// an error. Any other failure discards the partial listing. Pages are
// fetched one at a time.
func ListAll[T any](ctx context.Context, c *Client, path string, params url.Values) (models.Listing[T], error) {
	var first pageResponse[T]
	if err := c.getJSON(ctx, path, withPage(params, 1, ListAllPageSize), &first); err != nil {
		return models.Listing[T]{}, err
	}

	// The reported count only bounds the loop; it is never trusted as an
	// allocation size.
	out := models.Listing[T]{
		Count:   first.Count,
		Results: make([]T, 0, len(first.Results)),
	}
	out.Results = append(out.Results, first.Results...)

	for page := 2; len(out.Results) < out.Count; page++ {
		if ctx.Err() != nil {
			c.log.Debug("listing cancelled",
				zap.String("path", path),
				zap.Int("fetched", len(out.Results)),
				zap.Int("count", out.Count),
			)
			return out, nil
		}

		var next pageResponse[T]
		if err := c.getJSON(ctx, path, withPage(params, page, ListAllPageSize), &next); err != nil {
			if ctx.Err() != nil {
				return out, nil
			}
			return models.Listing[T]{}, err
		}
		if len(next.Results) == 0 {
			// The listing shrank upstream; nothing further to fetch.
			break
		}
		out.Results = append(out.Results, next.Results...)
	}
	return out, nil
}

// ListPage fetches a single page. Zero page or pageSize take the defaults.
func ListPage[T any](ctx context.Context, c *Client, path string, page, pageSize int, params url.Values) (models.Page[T], error) {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var resp pageResponse[T]
	if err := c.getJSON(ctx, path, withPage(params, page, pageSize), &resp); err != nil {
		return models.Page[T]{}, err
	}

	results := resp.Results
	if results == nil {
		results = []T{}
	}
	return models.Page[T]{
		Count:   resp.Count,
		Results: results,
		Next:    resp.Next != nil && *resp.Next != "",
		Page:    page,
	}, nil
}
