package postgres

import (
	"context"
	"errors"
	"fmt"

	mapping "program-mapping/internal/mapping/domain"
)

const (
	defaultProductsTable = "products"
	defaultPicklistTable = "product_picklist_values"
	defaultLabelsTable   = "field_labels"

	facetPower   = "power"
	facetSegment = "segment"
)

// CatalogRepository reads the product master list, facet values and field labels.
type CatalogRepository struct {
	db            DBTX
	productsTable string
	picklistTable string
	labelsTable   string
}

// CatalogOption configures the repository.
type CatalogOption func(*CatalogRepository)

// WithProductsTable overrides the products table name.
func WithProductsTable(table string) CatalogOption {
	return func(repo *CatalogRepository) {
		if table != "" {
			repo.productsTable = table
		}
	}
}

// NewCatalogRepository constructs a repository.
func NewCatalogRepository(db DBTX, opts ...CatalogOption) *CatalogRepository {
	repo := &CatalogRepository{
		db:            db,
		productsTable: defaultProductsTable,
		picklistTable: defaultPicklistTable,
		labelsTable:   defaultLabelsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ListProducts loads active products ordered by name.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]mapping.ProductMasterRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT id, name, power, segment
FROM %s
WHERE active
ORDER BY name ASC`, r.productsTable)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []mapping.ProductMasterRecord
	for rows.Next() {
		var product mapping.ProductMasterRecord
		if err := rows.Scan(&product.ProductID, &product.Name, &product.Power, &product.Segment); err != nil {
			return nil, err
		}
		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListFacets loads the power and segment picklist values.
func (r *CatalogRepository) ListFacets(ctx context.Context) (mapping.Facets, error) {
	if r == nil || r.db == nil {
		return mapping.Facets{}, errors.New("catalog repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT facet, value
FROM %s
WHERE facet IN ($1, $2)
ORDER BY facet ASC, sort_order ASC, value ASC`, r.picklistTable)

	rows, err := r.db.QueryContext(ctx, query, facetPower, facetSegment)
	if err != nil {
		return mapping.Facets{}, err
	}
	defer rows.Close()

	facets := mapping.Facets{Power: []string{}, Segment: []string{}}
	for rows.Next() {
		var facet, value string
		if err := rows.Scan(&facet, &value); err != nil {
			return mapping.Facets{}, err
		}
		switch facet {
		case facetPower:
			facets.Power = append(facets.Power, value)
		case facetSegment:
			facets.Segment = append(facets.Segment, value)
		}
	}
	if err := rows.Err(); err != nil {
		return mapping.Facets{}, err
	}
	return facets, nil
}

// FieldLabels loads display labels for the fields of object.
func (r *CatalogRepository) FieldLabels(ctx context.Context, object string) (map[string]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repo: nil db")
	}
	if object == "" {
		return nil, errors.New("catalog repo: empty object")
	}

	query := fmt.Sprintf(`
SELECT field_key, label
FROM %s
WHERE object_name = $1`, r.labelsTable)

	rows, err := r.db.QueryContext(ctx, query, object)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make(map[string]string)
	for rows.Next() {
		var key, label string
		if err := rows.Scan(&key, &label); err != nil {
			return nil, err
		}
		labels[key] = label
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}
