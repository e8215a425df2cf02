package application

import (
	"context"
	"time"

	mapping "program-mapping/internal/mapping/domain"
)

// CatalogLoader fetches the product master list.
type CatalogLoader interface {
	ListProducts(ctx context.Context) ([]mapping.ProductMasterRecord, error)
}

// MappingLoader fetches persisted mappings of a parent record keyed by product
// name. A parent with no mappings yields an empty map.
type MappingLoader interface {
	ListByParent(ctx context.Context, parentID string) (map[string]mapping.PersistedMapping, error)
}

// FacetLoader fetches the enumerated filter values.
type FacetLoader interface {
	ListFacets(ctx context.Context) (mapping.Facets, error)
}

// PersistenceSink stores a save payload for a parent record.
type PersistenceSink interface {
	SaveMappings(ctx context.Context, parentID string, payload mapping.SavePayload) error
}

// FieldLabelLookup returns display labels for the fields of an object.
type FieldLabelLookup interface {
	FieldLabels(ctx context.Context, object string) (map[string]string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
