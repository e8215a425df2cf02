package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	mapping "program-mapping/internal/mapping/domain"
)

// LoadResult bundles the three initial datasets.
type LoadResult struct {
	Products []mapping.ProductMasterRecord
	Mappings map[string]mapping.PersistedMapping
	Facets   mapping.Facets
}

// Loader issues the initial loads of a session.
type Loader struct {
	catalog  CatalogLoader
	mappings MappingLoader
	facets   FacetLoader
	delay    time.Duration
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithPreloadDelay sets a settle delay before the loads are issued.
func WithPreloadDelay(delay time.Duration) LoaderOption {
	return func(l *Loader) {
		if delay > 0 {
			l.delay = delay
		}
	}
}

// NewLoader constructs a loader.
func NewLoader(catalog CatalogLoader, mappings MappingLoader, facets FacetLoader, opts ...LoaderOption) (*Loader, error) {
	if catalog == nil {
		return nil, errors.New("mapping loader: nil catalog loader")
	}
	if mappings == nil {
		return nil, errors.New("mapping loader: nil mapping loader")
	}
	if facets == nil {
		return nil, errors.New("mapping loader: nil facet loader")
	}
	l := &Loader{catalog: catalog, mappings: mappings, facets: facets}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load waits for the preload delay, then runs the catalog, mapping and facet
// loads concurrently. Any failure fails the whole load.
func (l *Loader) Load(ctx context.Context, parentID string) (LoadResult, error) {
	if l.delay > 0 {
		timer := time.NewTimer(l.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return LoadResult{}, fmt.Errorf("%w: %w", mapping.ErrLoadFailure, ctx.Err())
		case <-timer.C:
		}
	}

	var result LoadResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := l.catalog.ListProducts(gctx)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		result.Products = products
		return nil
	})
	g.Go(func() error {
		mappings, err := l.mappings.ListByParent(gctx, parentID)
		if err != nil {
			return fmt.Errorf("mappings: %w", err)
		}
		result.Mappings = mappings
		return nil
	})
	g.Go(func() error {
		facets, err := l.facets.ListFacets(gctx)
		if err != nil {
			return fmt.Errorf("facets: %w", err)
		}
		result.Facets = facets
		return nil
	})
	if err := g.Wait(); err != nil {
		return LoadResult{}, fmt.Errorf("%w: %w", mapping.ErrLoadFailure, err)
	}
	if result.Mappings == nil {
		result.Mappings = map[string]mapping.PersistedMapping{}
	}
	return result, nil
}
