package domain

import (
	"strings"
	"testing"
	"time"
)

func TestSearchRequestNormalizeDefaults(t *testing.T) {
	req := SearchRequest{Query: "  how does indexing work  "}
	if err := req.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if req.Query != "how does indexing work" {
		t.Errorf("query not trimmed: %q", req.Query)
	}
	if req.SearchType != SearchHybrid {
		t.Errorf("default search type = %s, want hybrid", req.SearchType)
	}
	if req.Limit != DefaultLimit {
		t.Errorf("default limit = %d, want %d", req.Limit, DefaultLimit)
	}
	if req.Threshold != DefaultThreshold {
		t.Errorf("default threshold = %v, want %v", req.Threshold, DefaultThreshold)
	}
	if req.UseRerank == nil || !*req.UseRerank {
		t.Error("rerank should default to enabled")
	}
	if *req.VectorWeight != DefaultVectorWeight || *req.TextWeight != DefaultTextWeight {
		t.Errorf("default weights = %v/%v", *req.VectorWeight, *req.TextWeight)
	}
}

func TestSearchRequestNormalizeRejects(t *testing.T) {
	cases := []struct {
		name string
		req  SearchRequest
	}{
		{"empty_query", SearchRequest{Query: "   "}},
		{"long_query", SearchRequest{Query: strings.Repeat("q", MaxQueryLength+1)}},
		{"unknown_type", SearchRequest{Query: "q", SearchType: "semantic"}},
		{"limit_too_high", SearchRequest{Query: "q", Limit: MaxSearchLimit + 1}},
		{"negative_limit", SearchRequest{Query: "q", Limit: -1}},
		{"threshold_above_one", SearchRequest{Query: "q", Threshold: 1.5}},
		{"bad_element_type", SearchRequest{Query: "q", Facets: &SearchFacets{
			ElementTypes: []ElementType{"body_text"},
		}}},
		{"zero_page", SearchRequest{Query: "q", Facets: &SearchFacets{
			PageNumbers: []int{0},
		}}},
		{"spatial_without_page", SearchRequest{Query: "q", Facets: &SearchFacets{
			SpatialSearch: &SpatialFilter{},
		}}},
		{"spatial_bad_bbox", SearchRequest{Query: "q", Facets: &SearchFacets{
			SpatialSearch: &SpatialFilter{PageNumber: 1, BBox: &BBox{10, 0, 0, 10}},
		}}},
		{"min_over_max_length", SearchRequest{Query: "q", Facets: &SearchFacets{
			MinChunkLength: 100, MaxChunkLength: 50,
		}}},
		{"inverted_date_range", SearchRequest{Query: "q", Facets: &SearchFacets{
			DateRange: &DateRange{
				From: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Normalize()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsKind(err, ErrValidation) {
				t.Fatalf("error kind = %v, want ErrValidation", err)
			}
		})
	}
}

func TestWrapErrorKinds(t *testing.T) {
	err := WrapError(ErrCapability, "embed query", ErrTemporary)
	if !IsKind(err, ErrCapability) {
		t.Error("capability kind lost through wrapping")
	}
	if !IsKind(err, ErrTemporary) {
		t.Error("inner error lost through wrapping")
	}
	if IsKind(err, ErrValidation) {
		t.Error("unrelated kind matched")
	}
	if WrapError(ErrValidation, "noop", nil) != nil {
		t.Error("nil error should stay nil")
	}
}
