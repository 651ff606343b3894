package easyappointments

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the number of requests GetMany and DeleteMany
	// keep in flight.
	DefaultConcurrency = 10
	// maxListPages stops ListAll on servers that never signal the last page.
	maxListPages = 1000
)

// ListAll walks every page starting at opts.Page and returns the combined
// results.
func (s *ResourceService[T, PT]) ListAll(ctx context.Context, opts *ListOptions) ([]T, error) {
	o := opts.normalized()
	if opts == nil || opts.Length == 0 {
		o.Length = maxPageLength
	}

	var all []T
	for i := 0; i < maxListPages; i++ {
		page, err := s.List(ctx, &o)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s page %d: %w", s.name, o.Page, err)
		}
		all = append(all, page.Results...)
		if !page.HasNext() || page.fetched == 0 {
			return all, nil
		}
		o.Page++
	}

	s.client.logger.Warn().
		Str("resource", s.name).
		Int("pages", maxListPages).
		Msg("Stopped listing after page limit")
	return all, nil
}

// GetMany fetches ids concurrently. The result has one entry per id, in
// order; entries that failed are nil and their errors are combined in the
// returned *multierror.Error.
func (s *ResourceService[T, PT]) GetMany(ctx context.Context, ids []int64) ([]*T, error) {
	results := make([]*T, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultConcurrency)

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	for i, id := range ids {
		g.Go(func() error {
			item, err := s.Get(ctx, id)
			if err != nil {
				s.client.logger.Warn().
					Err(err).
					Str("resource", s.name).
					Int64("id", id).
					Msg("Failed to get resource")
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s %d: %w", s.name, id, err))
				mu.Unlock()
				// Continue with the remaining ids
				return nil
			}
			results[i] = item
			return nil
		})
	}

	_ = g.Wait()
	return results, errs.ErrorOrNil()
}

// DeleteMany deletes ids concurrently and returns the ids that were
// deleted. Failures do not stop the batch.
func (s *ResourceService[T, PT]) DeleteMany(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	// Lower limit for delete operations
	g.SetLimit(DefaultConcurrency / 2)

	var (
		mu      sync.Mutex
		deleted []int64
		errs    *multierror.Error
	)
	for _, id := range ids {
		g.Go(func() error {
			err := s.Delete(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s %d: %w", s.name, id, err))
				return nil
			}
			deleted = append(deleted, id)
			return nil
		})
	}

	_ = g.Wait()

	s.client.logger.Info().
		Str("resource", s.name).
		Int("requested", len(ids)).
		Int("deleted", len(deleted)).
		Msg("Batch delete completed")
	return deleted, errs.ErrorOrNil()
}
