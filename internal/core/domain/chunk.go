package domain

import "time"

type ElementType string

const (
	ElementParagraph     ElementType = "paragraph"
	ElementTitle         ElementType = "title"
	ElementHeader        ElementType = "header"
	ElementFooter        ElementType = "footer"
	ElementTableText     ElementType = "table_text"
	ElementFigureCaption ElementType = "figure_caption"
	ElementListItem      ElementType = "list_item"
	ElementFootnote      ElementType = "footnote"
	ElementMultimodal    ElementType = "multimodal"
)

// nativeElementTypes maps extraction-capability type names onto the fixed
// enumeration. Unknown types map to paragraph.
var nativeElementTypes = map[string]ElementType{
	"paragraph":      ElementParagraph,
	"text":           ElementParagraph,
	"narrative_text": ElementParagraph,
	"title":          ElementTitle,
	"section_title":  ElementTitle,
	"heading":        ElementHeader,
	"header":         ElementHeader,
	"page_header":    ElementHeader,
	"footer":         ElementFooter,
	"page_footer":    ElementFooter,
	"table":          ElementTableText,
	"table_text":     ElementTableText,
	"table_cell":     ElementTableText,
	"caption":        ElementFigureCaption,
	"figure_caption": ElementFigureCaption,
	"figure":         ElementFigureCaption,
	"list_item":      ElementListItem,
	"list":           ElementListItem,
	"footnote":       ElementFootnote,
	"multimodal":     ElementMultimodal,
}

func MapElementType(native string) ElementType {
	if mapped, ok := nativeElementTypes[native]; ok {
		return mapped
	}
	return ElementParagraph
}

// BBox is an axis-aligned rectangle [x1,y1,x2,y2] with x1<=x2 and y1<=y2.
type BBox [4]float64

func (b BBox) Valid() bool {
	return b[0] <= b[2] && b[1] <= b[3]
}

// Intersects reports axis-aligned rectangle intersection. Two boxes
// intersect unless one is entirely to the left/right or above/below the
// other; touching edges count as intersecting.
func (b BBox) Intersects(other BBox) bool {
	return !(b[2] < other[0] || b[0] > other[2] || b[3] < other[1] || b[1] > other[3])
}

// ChunkQuality records how well a chunk reads as a standalone unit.
// Coherence and Completeness are clamped to [0,1].
type ChunkQuality struct {
	Coherence        float64 `json:"coherence"`
	Completeness     float64 `json:"completeness"`
	SemanticBoundary bool    `json:"semantic_boundary"`
}

// Chunk is a retrievable unit of document text. Structural fields are nil
// when the plain chunking path produced it. Immutable once embedded;
// re-chunking deletes and replaces the whole set for a document.
type Chunk struct {
	ID          string            `json:"id"`
	DocumentID  string            `json:"document_id"`
	Index       int               `json:"index"`
	Content     string            `json:"content"`
	TokenCount  int               `json:"token_count"`
	ElementType *ElementType      `json:"element_type,omitempty"`
	PageNumber  *int              `json:"page_number,omitempty"`
	BBox        *BBox             `json:"bbox,omitempty"`
	Confidence  float64           `json:"confidence,omitempty"`
	Quality     ChunkQuality      `json:"quality"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ChunkHint carries what the caller already knows about a document before
// splitting. An empty DocumentType asks the chunker to detect one.
type ChunkHint struct {
	Filename     string
	DocumentType DocumentType
}

// StructuralElement is one typed, positioned region returned by the
// structural-extraction capability before it is turned into a chunk.
type StructuralElement struct {
	Content    string
	Type       string
	PageNumber int
	BBox       *BBox
	Confidence float64
}

type EmbeddingType string

const (
	EmbeddingText       EmbeddingType = "text"
	EmbeddingImage      EmbeddingType = "image"
	EmbeddingMultimodal EmbeddingType = "multimodal"
)

// Embedding belongs to exactly one chunk. Never mutated, only deleted with
// its owner.
type Embedding struct {
	ChunkID    string        `json:"chunk_id"`
	Vector     []float32     `json:"vector"`
	Model      string        `json:"model"`
	Dimensions int           `json:"dimensions"`
	Type       EmbeddingType `json:"type"`
}

// EmbeddingResult is one positional slot of a batch embedding call.
// Exactly one of Vector/Err is meaningful; the caller retries only the
// failed subset.
type EmbeddingResult struct {
	Vector     []float32
	TokenCount int
	Model      string
	Err        error
}
