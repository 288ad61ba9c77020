package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type SearchType string

const (
	SearchVector       SearchType = "vector"
	SearchHybrid       SearchType = "hybrid"
	SearchContextAware SearchType = "context-aware"
	SearchMultiStep    SearchType = "multi-step"
)

const (
	MaxQueryLength   = 500
	MaxSearchLimit   = 50
	DefaultLimit     = 10
	DefaultThreshold = 0.3

	DefaultVectorWeight = 0.7
	DefaultTextWeight   = 0.3
)

type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SpatialFilter restricts hits to one page and, when BBox is set, to
// chunks whose stored box intersects it.
type SpatialFilter struct {
	PageNumber int   `json:"page_number"`
	BBox       *BBox `json:"bbox,omitempty"`
}

// SearchFacets are applied conjunctively: AND across facet categories,
// OR within a facet's value list.
type SearchFacets struct {
	DocumentTypes  []string       `json:"document_types,omitempty"`
	DateRange      *DateRange     `json:"date_range,omitempty"`
	ElementTypes   []ElementType  `json:"element_types,omitempty"`
	PageNumbers    []int          `json:"page_numbers,omitempty"`
	SpatialSearch  *SpatialFilter `json:"spatial_search,omitempty"`
	MinChunkLength int            `json:"min_chunk_length,omitempty"`
	MaxChunkLength int            `json:"max_chunk_length,omitempty"`
}

type SearchRequest struct {
	Query        string        `json:"query"`
	SearchType   SearchType    `json:"search_type,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	Threshold    float64       `json:"threshold,omitempty"`
	Facets       *SearchFacets `json:"facets,omitempty"`
	UseRerank    *bool         `json:"use_rerank,omitempty"`
	VectorWeight *float64      `json:"vector_weight,omitempty"`
	TextWeight   *float64      `json:"text_weight,omitempty"`
}

// Normalize applies defaults and validates shape. It returns
// ErrValidation-kinded errors for anything the caller must fix.
func (r *SearchRequest) Normalize() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" || len(r.Query) > MaxQueryLength {
		return WrapError(ErrValidation, "search request",
			fmt.Errorf("query must be 1-%d characters", MaxQueryLength))
	}

	switch r.SearchType {
	case "":
		r.SearchType = SearchHybrid
	case SearchVector, SearchHybrid, SearchContextAware, SearchMultiStep:
	default:
		return WrapError(ErrValidation, "search request",
			fmt.Errorf("unknown search type %q", r.SearchType))
	}

	if r.Limit == 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit < 1 || r.Limit > MaxSearchLimit {
		return WrapError(ErrValidation, "search request",
			fmt.Errorf("limit must be 1-%d", MaxSearchLimit))
	}

	if r.Threshold == 0 {
		r.Threshold = DefaultThreshold
	}
	if r.Threshold < 0 || r.Threshold > 1 {
		return WrapError(ErrValidation, "search request",
			errors.New("threshold must be within [0,1]"))
	}

	if r.UseRerank == nil {
		useRerank := true
		r.UseRerank = &useRerank
	}
	if r.VectorWeight == nil {
		w := DefaultVectorWeight
		r.VectorWeight = &w
	}
	if r.TextWeight == nil {
		w := DefaultTextWeight
		r.TextWeight = &w
	}
	if *r.VectorWeight < 0 || *r.TextWeight < 0 {
		return WrapError(ErrValidation, "search request",
			errors.New("weights must be non-negative"))
	}

	if r.Facets != nil {
		if err := r.Facets.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *SearchFacets) validate() error {
	if f.MinChunkLength < 0 || f.MaxChunkLength < 0 {
		return WrapError(ErrValidation, "search facets",
			errors.New("chunk length bounds must be non-negative"))
	}
	if f.MaxChunkLength > 0 && f.MinChunkLength > f.MaxChunkLength {
		return WrapError(ErrValidation, "search facets",
			errors.New("min chunk length exceeds max"))
	}
	for _, et := range f.ElementTypes {
		if MapElementType(string(et)) != et {
			return WrapError(ErrValidation, "search facets",
				fmt.Errorf("unknown element type %q", et))
		}
	}
	for _, page := range f.PageNumbers {
		if page < 1 {
			return WrapError(ErrValidation, "search facets",
				errors.New("page numbers start at 1"))
		}
	}
	if f.SpatialSearch != nil {
		if f.SpatialSearch.PageNumber < 1 {
			return WrapError(ErrValidation, "search facets",
				errors.New("spatial search requires a page number"))
		}
		if f.SpatialSearch.BBox != nil && !f.SpatialSearch.BBox.Valid() {
			return WrapError(ErrValidation, "search facets",
				errors.New("spatial bbox must be ordered [x1,y1,x2,y2]"))
		}
	}
	if f.DateRange != nil && !f.DateRange.To.IsZero() && f.DateRange.From.After(f.DateRange.To) {
		return WrapError(ErrValidation, "search facets",
			errors.New("date range from exceeds to"))
	}
	return nil
}

// SearchResult is transient and never persisted. Component scores are kept
// alongside the blended score for explainability.
type SearchResult struct {
	ChunkID       string            `json:"chunk_id"`
	DocumentID    string            `json:"document_id"`
	DocumentTitle string            `json:"document_title"`
	ChunkIndex    int               `json:"chunk_index"`
	Content       string            `json:"content"`
	Similarity    float64           `json:"similarity"`
	TextScore     float64           `json:"text_score,omitempty"`
	Score         float64           `json:"score"`
	RerankScore   *float64          `json:"rerank_score,omitempty"`
	ElementType   *ElementType      `json:"element_type,omitempty"`
	PageNumber    *int              `json:"page_number,omitempty"`
	BBox          *BBox             `json:"bbox,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type FacetSummary struct {
	Applied   []string `json:"applied"`
	Available []string `json:"available"`
}

type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	SearchTimeMs float64        `json:"search_time_ms"`
	Facets       FacetSummary   `json:"facets"`
}

// Candidate is an index hit before scoring: a chunk plus its document
// context and raw vector similarity.
type Candidate struct {
	Chunk         Chunk
	DocumentTitle string
	DocumentType  DocumentType
	DocumentDate  time.Time
	Similarity    float64
}
