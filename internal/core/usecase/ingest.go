package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
	"github.com/kosarev-dev/docpipe/internal/core/ports"
)

// IngestDocumentUseCase accepts an upload, persists the source bytes and
// the document record, and hands processing off through the queue.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	log     *slog.Logger
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	log *slog.Logger,
) *IngestDocumentUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		log:     log,
	}
}

func (uc *IngestDocumentUseCase) Upload(ctx context.Context, userID, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "upload document",
			fmt.Errorf("user id is required"))
	}
	filename = sanitizeFilename(filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrValidation, "upload document",
			fmt.Errorf("filename is required"))
	}
	if body == nil {
		return nil, domain.WrapError(domain.ErrValidation, "upload document",
			fmt.Errorf("request body is empty"))
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       titleFromFilename(filename),
		Filename:    filename,
		MimeType:    mimeType,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	doc.StoragePath = fmt.Sprintf("documents/%s/%s/%s", userID, doc.ID, filename)

	if err := uc.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, fmt.Errorf("save document body: %w", err)
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	event := domain.StageEvent{
		DocumentID: doc.ID,
		UserID:     userID,
		Stage:      "upload",
		OccurredAt: now,
		Payload:    map[string]any{"filename": filename, "mimeType": mimeType},
	}
	if err := uc.queue.PublishStageEvent(ctx, event); err != nil {
		// The record exists and the body is stored; a reprocess can
		// re-publish. Surface the failure so the caller knows processing
		// has not started.
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	uc.log.Info("document_uploaded",
		"document_id", doc.ID,
		"user_id", userID,
		"filename", filename,
	)
	return doc, nil
}

// sanitizeFilename strips any path components and control characters so
// the storage key stays flat and printable.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func titleFromFilename(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}
