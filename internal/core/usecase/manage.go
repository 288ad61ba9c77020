package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/pipeline"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

const documentCacheTTL = time.Minute

// ManageDocumentUseCase serves reads, deletion, and reprocessing of
// already-uploaded documents.
type ManageDocumentUseCase struct {
	repo     ports.DocumentRepository
	index    ports.ChunkIndex
	queue    ports.MessageQueue
	cache    ports.Cache
	features pipeline.Features
	log      *slog.Logger
}

func NewManageDocumentUseCase(
	repo ports.DocumentRepository,
	index ports.ChunkIndex,
	queue ports.MessageQueue,
	cache ports.Cache,
	features pipeline.Features,
	log *slog.Logger,
) *ManageDocumentUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &ManageDocumentUseCase{
		repo:     repo,
		index:    index,
		queue:    queue,
		cache:    cache,
		features: features,
		log:      log,
	}
}

// GetByID reads the document record, via the short-lived document cache.
// The cache entry is dropped on every status transition through the
// indexing path, so a stale read window is bounded by the ttl.
func (uc *ManageDocumentUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	key := cacheKey(cachePrefixDocument, id)
	if uc.cache != nil {
		if raw, ok, err := uc.cache.Get(ctx, key); err == nil && ok {
			var doc domain.Document
			if err := json.Unmarshal(raw, &doc); err == nil {
				return &doc, nil
			}
		}
	}

	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if raw, err := json.Marshal(doc); err == nil {
			if err := uc.cache.Set(ctx, key, raw, documentCacheTTL); err != nil {
				uc.log.Warn("document_cache_write_failed", "error", err)
			}
		}
	}
	return doc, nil
}

// Progress reconstructs pipeline progress from the durable record.
func (uc *ManageDocumentUseCase) Progress(ctx context.Context, id string) (pipeline.Progress, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return pipeline.Progress{}, err
	}
	return pipeline.ProgressFromDocument(doc, uc.features), nil
}

// Delete removes the record, its indexed chunks, and every cache entry
// derived from them.
func (uc *ManageDocumentUseCase) Delete(ctx context.Context, id string) error {
	if _, err := uc.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := uc.index.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("delete indexed chunks: %w", err)
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}

	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, cacheKey(cachePrefixDocument, id)); err != nil {
			uc.log.Warn("document_cache_invalidation_failed", "error", err)
		}
		if err := uc.cache.InvalidatePrefix(ctx, cachePrefixSearch); err != nil {
			uc.log.Warn("search_cache_invalidation_failed", "error", err)
		}
	}

	uc.log.Info("document_deleted", "document_id", id)
	return nil
}

// Reprocess resets the document to uploaded and re-publishes the upload
// event so a worker picks it up again. Documents still mid-pipeline are
// rejected; the caller should wait for a terminal status.
func (uc *ManageDocumentUseCase) Reprocess(ctx context.Context, id string) error {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status != domain.StatusProcessed && doc.Status != domain.StatusError && doc.Status != domain.StatusUploaded {
		return domain.WrapError(domain.ErrState, "reprocess document",
			fmt.Errorf("document is %s, want a terminal status", doc.Status))
	}

	if err := uc.repo.UpdateStatus(ctx, id, domain.StatusUploaded, "", ""); err != nil {
		return fmt.Errorf("reset document status: %w", err)
	}
	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, cacheKey(cachePrefixDocument, id)); err != nil {
			uc.log.Warn("document_cache_invalidation_failed", "error", err)
		}
	}

	event := domain.StageEvent{
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		Stage:      "upload",
		OccurredAt: time.Now().UTC(),
		Payload:    map[string]any{"reprocess": true},
	}
	if err := uc.queue.PublishStageEvent(ctx, event); err != nil {
		return fmt.Errorf("publish reprocess event: %w", err)
	}

	uc.log.Info("document_reprocess_requested", "document_id", id)
	return nil
}
