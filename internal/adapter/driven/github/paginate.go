package github

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync/atomic"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/gitmirror/internal/domain/port/driven"
)

// Seq is a lazy sequence of collection items. An error is yielded at most once
// and ends the sequence.
type Seq[T any] = iter.Seq2[T, error]

// pageFunc requests a single page of a collection.
type pageFunc[T any] func(ctx context.Context, opts gh.ListOptions) ([]T, *gh.Response, error)

// paginate turns a page request into a sequence that walks every page in order,
// following the Link header until GitHub reports no next page. Pages are only
// requested as the consumer ranges. The sequence can be ranged once; a second
// range yields driven.ErrSequenceConsumed.
func paginate[T any](ctx context.Context, endpoint string, fetch pageFunc[T]) Seq[T] {
	var consumed atomic.Bool

	return func(yield func(T, error) bool) {
		var zero T

		if consumed.Swap(true) {
			yield(zero, fmt.Errorf("listing %s: %w", endpoint, driven.ErrSequenceConsumed))
			return
		}

		opts := gh.ListOptions{PerPage: perPage}

		for {
			items, resp, err := fetch(ctx, opts)
			if err != nil {
				yield(zero, classify(fmt.Sprintf("listing %s (page %d)", endpoint, opts.Page), err))
				return
			}

			logRateLimit(resp, endpoint, opts.Page, len(items))

			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			if resp == nil || resp.NextPage == 0 {
				return
			}
			opts.Page = resp.NextPage
		}
	}
}

// listFetched pages through a list endpoint and decodes each item into T,
// keeping the item's JSON alongside it.
func listFetched[T any](ctx context.Context, endpoint string, fetch pageFunc[json.RawMessage]) Seq[driven.Fetched[T]] {
	return paginate(ctx, endpoint, func(ctx context.Context, opts gh.ListOptions) ([]driven.Fetched[T], *gh.Response, error) {
		raws, resp, err := fetch(ctx, opts)
		if err != nil {
			return nil, resp, err
		}

		items := make([]driven.Fetched[T], 0, len(raws))
		for i, raw := range raws {
			var item T
			if err := json.Unmarshal(raw, &item); err != nil {
				return nil, resp, fmt.Errorf("decoding item %d: %w", i, err)
			}
			items = append(items, driven.Fetched[T]{Item: item, Raw: raw})
		}
		return items, resp, nil
	})
}
