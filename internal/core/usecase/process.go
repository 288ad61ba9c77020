package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/pipeline"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

// ProcessDocumentUseCase drives one document through the full ingestion
// pipeline. Every stage transition goes through the tracker so document
// status stays consistent with what actually ran.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	enricher  *Enricher
	batcher   ports.EmbeddingBatcher
	embedder  ports.EmbeddingProvider
	index     ports.ChunkIndex
	cache     ports.Cache
	features  pipeline.Features
	observer  PipelineObserver
	events    ports.MessageQueue
	log       *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	enricher *Enricher,
	batcher ports.EmbeddingBatcher,
	embedder ports.EmbeddingProvider,
	index ports.ChunkIndex,
	cache ports.Cache,
	features pipeline.Features,
	log *slog.Logger,
) *ProcessDocumentUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		enricher:  enricher,
		batcher:   batcher,
		embedder:  embedder,
		index:     index,
		cache:     cache,
		features:  features,
		log:       log,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	tracker := pipeline.NewTracker(doc.ID, uc.features, uc.statusSink(), uc.log)
	log := uc.log.With("document_id", doc.ID)

	// Upload already happened in the API process; record it as the first
	// completed stage so progress starts from a true baseline.
	if err := uc.runStage(ctx, tracker, doc, pipeline.StageUpload, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"filename": doc.Filename}, nil
	}); err != nil {
		return err
	}

	var text domain.ExtractedText
	if err := uc.runStage(ctx, tracker, doc, pipeline.StageTextExtraction, func(ctx context.Context) (map[string]any, error) {
		text, err = uc.extractor.Extract(ctx, doc)
		if err != nil {
			return nil, err
		}
		if len(text.Pages) == 0 || strings.TrimSpace(text.Full()) == "" {
			return nil, domain.WrapError(domain.ErrEmptyInput, "text extraction",
				errors.New("document yielded no text"))
		}
		return map[string]any{"pages": len(text.Pages), "textLength": len(text.Full())}, nil
	}); err != nil {
		return err
	}

	var plain []domain.Chunk
	if err := uc.runStage(ctx, tracker, doc, pipeline.StageChunking, func(ctx context.Context) (map[string]any, error) {
		plain, err = uc.chunkPages(doc, text)
		if err != nil {
			return nil, err
		}
		return map[string]any{"chunks": len(plain)}, nil
	}); err != nil {
		return err
	}

	if uc.features.PDFConversion {
		if isPDF(doc) {
			if err := uc.runStage(ctx, tracker, doc, pipeline.StagePDFConversion, func(ctx context.Context) (map[string]any, error) {
				return map[string]any{"images": len(text.Images)}, nil
			}); err != nil {
				return err
			}
		} else if err := tracker.SkipStage(pipeline.StagePDFConversion); err != nil {
			return err
		}
	}

	var chunks []domain.Chunk
	var enriched bool
	if err := uc.runStage(ctx, tracker, doc, pipeline.StageADEProcessing, func(ctx context.Context) (map[string]any, error) {
		chunks, enriched = uc.enricher.Enrich(ctx, doc, text, plain)
		return map[string]any{"enriched": enriched, "chunks": len(chunks)}, nil
	}); err != nil {
		return err
	}

	var embeddings []domain.Embedding
	if err := uc.runStage(ctx, tracker, doc, pipeline.StageEmbeddingGeneration, func(ctx context.Context) (map[string]any, error) {
		embeddings, err = uc.embedChunks(ctx, chunks)
		if err != nil {
			return nil, err
		}
		return map[string]any{"embeddingCount": len(embeddings)}, nil
	}); err != nil {
		return err
	}

	if uc.features.MultimodalEmbedding {
		if err := uc.runStage(ctx, tracker, doc, pipeline.StageMultimodalEmbedding, func(ctx context.Context) (map[string]any, error) {
			extra, err := uc.embedCaptions(ctx, chunks, text)
			if err != nil {
				return nil, err
			}
			embeddings = append(embeddings, extra...)
			return map[string]any{"multimodalCount": len(extra)}, nil
		}); err != nil {
			return err
		}
	}

	if err := uc.runStage(ctx, tracker, doc, pipeline.StageIndexing, func(ctx context.Context) (map[string]any, error) {
		if err := uc.index.ReplaceDocumentChunks(ctx, doc, chunks, embeddings); err != nil {
			return nil, err
		}
		uc.invalidateForDocument(ctx, doc.ID)
		if uc.observer != nil {
			uc.observer.ChunksIndexed(len(chunks))
			uc.observer.EmbeddingsGenerated(len(embeddings))
		}
		return map[string]any{"indexed": len(chunks)}, nil
	}); err != nil {
		return err
	}

	return uc.runStage(ctx, tracker, doc, pipeline.StageCompletion, func(ctx context.Context) (map[string]any, error) {
		if doc.DocumentType == "" {
			if detected, ok := detectedType(chunks); ok {
				if err := uc.repo.SetDocumentType(ctx, doc.ID, detected); err != nil {
					log.Warn("document_type_update_failed", "error", err)
				}
			}
		}
		return map[string]any{"enriched": enriched}, nil
	})
}

// PipelineObserver receives stage-level processing signals. The worker
// binds it to prometheus; tests and the API leave it nil.
type PipelineObserver interface {
	ObserveStage(stage string, duration time.Duration)
	StageFailed(stage string)
	ChunksIndexed(count int)
	EmbeddingsGenerated(count int)
}

// SetObserver attaches stage metrics. Must be called before ProcessByID.
func (uc *ProcessDocumentUseCase) SetObserver(observer PipelineObserver) {
	uc.observer = observer
}

// SetEventPublisher enables stage-transition events for the external
// orchestrator. Publishing is best effort; a queue outage never fails a
// stage that already completed.
func (uc *ProcessDocumentUseCase) SetEventPublisher(events ports.MessageQueue) {
	uc.events = events
}

func (uc *ProcessDocumentUseCase) publishStageEvent(ctx context.Context, doc *domain.Document, stage pipeline.Stage, metadata map[string]any) {
	// The upload event comes from the API and is what triggers this run;
	// republishing it would loop the worker.
	if uc.events == nil || stage == pipeline.StageUpload {
		return
	}
	event := domain.StageEvent{
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		Stage:      string(stage),
		OccurredAt: time.Now().UTC(),
		Payload:    metadata,
	}
	if err := uc.events.PublishStageEvent(ctx, event); err != nil {
		uc.log.Warn("stage_event_publish_failed",
			"document_id", doc.ID,
			"stage", string(stage),
			"error", err,
		)
	}
}

// runStage wraps one stage body with tracker transitions. The body's
// error fails the stage and is returned wrapped with the stage name.
func (uc *ProcessDocumentUseCase) runStage(
	ctx context.Context,
	tracker *pipeline.Tracker,
	doc *domain.Document,
	stage pipeline.Stage,
	body func(ctx context.Context) (map[string]any, error),
) error {
	if err := tracker.StartStage(ctx, stage); err != nil {
		return err
	}
	start := time.Now()
	metadata, err := body(ctx)
	if err != nil {
		if uc.observer != nil {
			uc.observer.StageFailed(string(stage))
		}
		if failErr := tracker.FailStage(ctx, stage, err); failErr != nil {
			uc.log.Error("stage_failure_report_failed", "stage", string(stage), "error", failErr)
		}
		return fmt.Errorf("stage %s: %w", stage, err)
	}
	if uc.observer != nil {
		uc.observer.ObserveStage(string(stage), time.Since(start))
	}
	if err := tracker.CompleteStage(ctx, stage, metadata); err != nil {
		return err
	}
	uc.publishStageEvent(ctx, doc, stage, metadata)
	return nil
}

func (uc *ProcessDocumentUseCase) statusSink() pipeline.StatusSink {
	return func(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage, lastStage string) error {
		return uc.repo.UpdateStatus(ctx, documentID, status, errMessage, lastStage)
	}
}

// chunkPages splits each extracted page separately so plain chunks carry
// their page number, then re-numbers ordinals across the document.
func (uc *ProcessDocumentUseCase) chunkPages(doc *domain.Document, text domain.ExtractedText) ([]domain.Chunk, error) {
	hint := domain.ChunkHint{Filename: doc.Filename, DocumentType: doc.DocumentType}

	all := make([]domain.Chunk, 0, len(text.Pages)*4)
	for _, page := range text.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		pageChunks, err := uc.chunker.Split(page.Text, hint)
		if err != nil {
			if domain.IsKind(err, domain.ErrEmptyInput) {
				continue
			}
			return nil, err
		}
		pageNumber := page.Number
		for i := range pageChunks {
			pageChunks[i].DocumentID = doc.ID
			pageChunks[i].PageNumber = &pageNumber
			pageChunks[i].Index = len(all) + i
		}
		all = append(all, pageChunks...)
	}
	if len(all) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyInput, "chunking",
			errors.New("no pages produced chunks"))
	}
	return all, nil
}

// embedChunks embeds chunk contents in order. Failed slots are retried
// once as a subset; a slot that fails twice fails the stage.
func (uc *ProcessDocumentUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Embedding, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	results := uc.batcher.EmbedTextBatch(ctx, texts)
	if len(results) != len(chunks) {
		return nil, domain.WrapError(domain.ErrCapability, "embedding generation",
			fmt.Errorf("result count %d != chunk count %d", len(results), len(chunks)))
	}

	var failedIdx []int
	for i, r := range results {
		if r.Err != nil {
			failedIdx = append(failedIdx, i)
		}
	}
	if len(failedIdx) > 0 {
		uc.log.Warn("embedding_retry", "failed", len(failedIdx), "total", len(chunks))
		retryTexts := make([]string, len(failedIdx))
		for i, idx := range failedIdx {
			retryTexts[i] = texts[idx]
		}
		retried := uc.batcher.EmbedTextBatch(ctx, retryTexts)
		if len(retried) != len(failedIdx) {
			return nil, domain.WrapError(domain.ErrCapability, "embedding generation",
				fmt.Errorf("retry result count %d != failed count %d", len(retried), len(failedIdx)))
		}
		for i, idx := range failedIdx {
			results[idx] = retried[i]
		}
		for _, idx := range failedIdx {
			if results[idx].Err != nil {
				return nil, domain.WrapError(domain.ErrCapability, "embedding generation",
					fmt.Errorf("chunk %d failed after retry: %w", idx, results[idx].Err))
			}
		}
	}

	embeddings := make([]domain.Embedding, len(chunks))
	for i, r := range results {
		model := r.Model
		if model == "" && uc.embedder != nil {
			model = uc.embedder.ModelID()
		}
		embeddings[i] = domain.Embedding{
			ChunkID:    chunks[i].ID,
			Vector:     r.Vector,
			Model:      model,
			Dimensions: len(r.Vector),
			Type:       domain.EmbeddingText,
		}
	}
	return embeddings, nil
}

// embedCaptions builds one extra multimodal embedding per figure-caption
// chunk that has an extracted image on its page.
func (uc *ProcessDocumentUseCase) embedCaptions(ctx context.Context, chunks []domain.Chunk, text domain.ExtractedText) ([]domain.Embedding, error) {
	var out []domain.Embedding
	for _, c := range chunks {
		if c.ElementType == nil || *c.ElementType != domain.ElementFigureCaption || c.PageNumber == nil {
			continue
		}
		image, ok := text.ImageForPage(*c.PageNumber)
		if !ok {
			continue
		}
		result := uc.batcher.EmbedMultimodalPair(ctx, c.Content, image)
		if result.Err != nil {
			return nil, domain.WrapError(domain.ErrCapability, "multimodal embedding", result.Err)
		}
		model := result.Model
		if model == "" && uc.embedder != nil {
			model = uc.embedder.ModelID()
		}
		out = append(out, domain.Embedding{
			ChunkID:    c.ID,
			Vector:     result.Vector,
			Model:      model,
			Dimensions: len(result.Vector),
			Type:       domain.EmbeddingMultimodal,
		})
	}
	return out, nil
}

// invalidateForDocument drops every cached search response and the
// document's own cached record after the index mutates.
func (uc *ProcessDocumentUseCase) invalidateForDocument(ctx context.Context, documentID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.InvalidatePrefix(ctx, cachePrefixSearch); err != nil {
		uc.log.Warn("search_cache_invalidation_failed", "error", err)
	}
	if err := uc.cache.Delete(ctx, cacheKey(cachePrefixDocument, documentID)); err != nil {
		uc.log.Warn("document_cache_invalidation_failed", "error", err)
	}
}

func detectedType(chunks []domain.Chunk) (domain.DocumentType, bool) {
	for _, c := range chunks {
		if t, ok := c.Metadata["document_type"]; ok && t != "" {
			return domain.DocumentType(t), true
		}
	}
	return "", false
}

func isPDF(doc *domain.Document) bool {
	if strings.EqualFold(doc.MimeType, "application/pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.Filename), ".pdf")
}
