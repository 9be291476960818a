package httpclient

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/riders-api/riders"
)

// Result is the outcome of one request in a fan-out.
type Result[T any] struct {
	URL   string
	Value T
	Err   error
}

// Fetch GETs every URL concurrently and decodes each body as JSON.
func (c *Client) Fetch(ctx context.Context, urls []string, headers Headers) []Result[any] {
	return fanOut(ctx, c.limit, urls, func(ctx context.Context, url string) (any, error) {
		return c.Get(ctx, url, headers)
	})
}

// Scrape GETs every URL concurrently and returns each body as text.
func (c *Client) Scrape(ctx context.Context, urls []string, headers Headers) []Result[string] {
	return fanOut(ctx, c.limit, urls, func(ctx context.Context, url string) (string, error) {
		return c.Text(ctx, url, headers)
	})
}

// Batch GETs every URL concurrently and returns each raw body.
func (c *Client) Batch(ctx context.Context, urls []string, headers Headers) []Result[[]byte] {
	return fanOut(ctx, c.limit, urls, func(ctx context.Context, url string) ([]byte, error) {
		return c.Blob(ctx, url, headers)
	})
}

// fanOut runs get for every URL and stores each outcome at its input index.
// Workers never return an error to the group so one failure cannot cancel
// its siblings.
func fanOut[T any](ctx context.Context, limit int, urls []string, get func(context.Context, string) (T, error)) []Result[T] {
	results := make([]Result[T], len(urls))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, url := range urls {
		g.Go(func() error {
			value, err := get(ctx, url)
			results[i] = Result[T]{URL: url, Value: value, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// BatchError lists the failed slots of a fan-out.
type BatchError struct {
	Total  int
	Failed []int
	Errs   []error
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, idx := range e.Failed {
		parts[i] = fmt.Sprintf("[%d] %v", idx, e.Errs[i])
	}
	return fmt.Sprintf("%v: %d of %d requests failed: %s",
		riders.ErrPartialBatch, len(e.Failed), e.Total, strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	return append([]error{riders.ErrPartialBatch}, e.Errs...)
}

// BatchErr returns nil when every result succeeded, otherwise a *BatchError.
func BatchErr[T any](results []Result[T]) error {
	var failed []int
	var errs []error
	for i, r := range results {
		if r.Err != nil {
			failed = append(failed, i)
			errs = append(errs, r.Err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &BatchError{Total: len(results), Failed: failed, Errs: errs}
}
