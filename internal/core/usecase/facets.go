package usecase

import (
	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

// facetNames in a fixed order so the "available" summary is stable.
var facetNames = []string{
	"document_types", "date_range", "element_types", "page_numbers",
	"spatial_search", "min_chunk_length", "max_chunk_length",
}

// applyFacets filters candidates conjunctively: AND across facet
// categories, OR within a facet's value list. Returns the survivors and
// the names of the facets that were actually applied.
func applyFacets(candidates []domain.Candidate, facets *domain.SearchFacets) ([]domain.Candidate, []string) {
	if facets == nil {
		return candidates, nil
	}

	applied := make([]string, 0, len(facetNames))
	filters := make([]func(domain.Candidate) bool, 0, len(facetNames))

	if len(facets.DocumentTypes) > 0 {
		applied = append(applied, "document_types")
		allowed := toSet(facets.DocumentTypes)
		filters = append(filters, func(c domain.Candidate) bool {
			_, ok := allowed[string(c.DocumentType)]
			return ok
		})
	}
	if facets.DateRange != nil {
		applied = append(applied, "date_range")
		dr := *facets.DateRange
		filters = append(filters, func(c domain.Candidate) bool {
			if !dr.From.IsZero() && c.DocumentDate.Before(dr.From) {
				return false
			}
			if !dr.To.IsZero() && c.DocumentDate.After(dr.To) {
				return false
			}
			return true
		})
	}
	if len(facets.ElementTypes) > 0 {
		applied = append(applied, "element_types")
		allowed := make(map[domain.ElementType]struct{}, len(facets.ElementTypes))
		for _, et := range facets.ElementTypes {
			allowed[et] = struct{}{}
		}
		filters = append(filters, func(c domain.Candidate) bool {
			if c.Chunk.ElementType == nil {
				return false
			}
			_, ok := allowed[*c.Chunk.ElementType]
			return ok
		})
	}
	if len(facets.PageNumbers) > 0 {
		applied = append(applied, "page_numbers")
		allowed := make(map[int]struct{}, len(facets.PageNumbers))
		for _, p := range facets.PageNumbers {
			allowed[p] = struct{}{}
		}
		filters = append(filters, func(c domain.Candidate) bool {
			if c.Chunk.PageNumber == nil {
				return false
			}
			_, ok := allowed[*c.Chunk.PageNumber]
			return ok
		})
	}
	if facets.SpatialSearch != nil {
		applied = append(applied, "spatial_search")
		spatial := *facets.SpatialSearch
		filters = append(filters, func(c domain.Candidate) bool {
			if c.Chunk.PageNumber == nil || *c.Chunk.PageNumber != spatial.PageNumber {
				return false
			}
			if spatial.BBox == nil {
				return true
			}
			return c.Chunk.BBox != nil && c.Chunk.BBox.Intersects(*spatial.BBox)
		})
	}
	if facets.MinChunkLength > 0 {
		applied = append(applied, "min_chunk_length")
		minLen := facets.MinChunkLength
		filters = append(filters, func(c domain.Candidate) bool {
			return len(c.Chunk.Content) >= minLen
		})
	}
	if facets.MaxChunkLength > 0 {
		applied = append(applied, "max_chunk_length")
		maxLen := facets.MaxChunkLength
		filters = append(filters, func(c domain.Candidate) bool {
			return len(c.Chunk.Content) <= maxLen
		})
	}

	if len(filters) == 0 {
		return candidates, nil
	}

	out := make([]domain.Candidate, 0, len(candidates))
candidates:
	for _, c := range candidates {
		for _, keep := range filters {
			if !keep(c) {
				continue candidates
			}
		}
		out = append(out, c)
	}
	return out, applied
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
