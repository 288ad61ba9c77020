// Package pipeline tracks ingestion stage state for a single document.
//
// The tracker is transient: the document status it reports through its
// sink is the durable source of truth, and a tracker can always be
// rebuilt from that status plus logs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

type Stage string

const (
	StageUpload              Stage = "upload"
	StageTextExtraction      Stage = "text_extraction"
	StageChunking            Stage = "chunking"
	StagePDFConversion       Stage = "pdf_conversion"
	StageADEProcessing       Stage = "ade_processing"
	StageEmbeddingGeneration Stage = "embedding_generation"
	StageMultimodalEmbedding Stage = "multimodal_embedding"
	StageIndexing            Stage = "indexing"
	StageCompletion          Stage = "completion"
)

// stageOrder is the full ordered sequence. Optional stages are pre-marked
// skipped at construction based on feature configuration.
var stageOrder = []Stage{
	StageUpload,
	StageTextExtraction,
	StageChunking,
	StagePDFConversion,
	StageADEProcessing,
	StageEmbeddingGeneration,
	StageMultimodalEmbedding,
	StageIndexing,
	StageCompletion,
}

type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
	StageSkipped    StageStatus = "skipped"
)

// stageToDocumentStatus maps a started stage onto the coarse document
// status. Unmapped stages default to processing.
var stageToDocumentStatus = map[Stage]domain.DocumentStatus{
	StageUpload:              domain.StatusUploaded,
	StageTextExtraction:      domain.StatusTextExtracted,
	StageChunking:            domain.StatusChunked,
	StagePDFConversion:       domain.StatusImagesExtracted,
	StageADEProcessing:       domain.StatusADEProcessed,
	StageEmbeddingGeneration: domain.StatusEmbedded,
	StageMultimodalEmbedding: domain.StatusEmbedded,
	StageCompletion:          domain.StatusProcessed,
}

func DocumentStatusFor(stage Stage) domain.DocumentStatus {
	if status, ok := stageToDocumentStatus[stage]; ok {
		return status
	}
	return domain.StatusProcessing
}

type StageState struct {
	Status     StageStatus    `json:"status"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	DurationMs float64        `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type OverallStatus string

const (
	OverallProcessing OverallStatus = "processing"
	OverallCompleted  OverallStatus = "completed"
	OverallFailed     OverallStatus = "failed"
)

type Progress struct {
	Status          OverallStatus         `json:"status"`
	PercentComplete float64               `json:"percent_complete"`
	Stages          map[Stage]*StageState `json:"stages"`
	ElapsedMs       float64               `json:"elapsed_ms"`
}

// StatusSink receives coarse document status transitions. The processing
// usecase plugs the document repository in here.
type StatusSink func(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage, lastStage string) error

type Features struct {
	PDFConversion       bool
	MultimodalEmbedding bool
}

// Tracker is the per-document stage state machine. Safe for concurrent
// use; each ingestion stage runs as its own task.
type Tracker struct {
	documentID string
	sink       StatusSink
	log        *slog.Logger

	mu        sync.Mutex
	stages    map[Stage]*StageState
	createdAt time.Time
	now       func() time.Time
}

func NewTracker(documentID string, features Features, sink StatusSink, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{
		documentID: documentID,
		sink:       sink,
		log:        log.With("document_id", documentID),
		stages:     make(map[Stage]*StageState, len(stageOrder)),
		now:        time.Now,
	}
	t.createdAt = t.now()

	for _, stage := range stageOrder {
		t.stages[stage] = &StageState{Status: StagePending}
	}
	if !features.PDFConversion {
		t.stages[StagePDFConversion].Status = StageSkipped
	}
	if !features.MultimodalEmbedding {
		t.stages[StageMultimodalEmbedding].Status = StageSkipped
	}
	return t
}

// StartStage moves a pending stage to in_progress, records its start
// time, pushes the mapped document status through the sink, and logs a
// progress entry.
func (t *Tracker) StartStage(ctx context.Context, stage Stage) error {
	t.mu.Lock()
	state, ok := t.stages[stage]
	if !ok {
		t.mu.Unlock()
		return domain.WrapError(domain.ErrState, "start stage", fmt.Errorf("unknown stage %q", stage))
	}
	if state.Status != StagePending {
		t.mu.Unlock()
		return domain.WrapError(domain.ErrState, "start stage",
			fmt.Errorf("stage %s is %s, want pending", stage, state.Status))
	}
	started := t.now()
	state.Status = StageInProgress
	state.StartedAt = &started
	t.mu.Unlock()

	t.log.Info("stage_started", "stage", string(stage))
	if t.sink != nil {
		status := DocumentStatusFor(stage)
		if err := t.sink(ctx, t.documentID, status, "", ""); err != nil {
			return fmt.Errorf("report stage start: %w", err)
		}
	}
	return nil
}

// CompleteStage moves an in_progress stage to completed and, when every
// non-skipped stage has completed, transitions the document to its
// terminal processed status.
func (t *Tracker) CompleteStage(ctx context.Context, stage Stage, metadata map[string]any) error {
	t.mu.Lock()
	state, ok := t.stages[stage]
	if !ok {
		t.mu.Unlock()
		return domain.WrapError(domain.ErrState, "complete stage", fmt.Errorf("unknown stage %q", stage))
	}
	if state.Status != StageInProgress {
		t.mu.Unlock()
		return domain.WrapError(domain.ErrState, "complete stage",
			fmt.Errorf("stage %s is %s, want in_progress", stage, state.Status))
	}
	finished := t.now()
	state.Status = StageCompleted
	state.FinishedAt = &finished
	if state.StartedAt != nil {
		state.DurationMs = float64(finished.Sub(*state.StartedAt).Microseconds()) / 1000.0
	}
	if metadata != nil {
		state.Metadata = metadata
	}
	allDone := t.allNonSkippedCompletedLocked()
	t.mu.Unlock()

	t.log.Info("stage_completed", "stage", string(stage), "duration_ms", state.DurationMs)
	if allDone && t.sink != nil {
		if err := t.sink(ctx, t.documentID, domain.StatusProcessed, "", string(stage)); err != nil {
			return fmt.Errorf("report completion: %w", err)
		}
		return nil
	}
	if t.sink != nil {
		if err := t.sink(ctx, t.documentID, DocumentStatusFor(stage), "", string(stage)); err != nil {
			return fmt.Errorf("report stage completion: %w", err)
		}
	}
	return nil
}

// FailStage is terminal for the stage: it records the error and moves the
// document to error status. The tracker never retries; retry is the
// orchestrator's call.
func (t *Tracker) FailStage(ctx context.Context, stage Stage, cause error) error {
	t.mu.Lock()
	state, ok := t.stages[stage]
	if !ok {
		t.mu.Unlock()
		return domain.WrapError(domain.ErrState, "fail stage", fmt.Errorf("unknown stage %q", stage))
	}
	if state.Status == StageCompleted || state.Status == StageSkipped {
		t.mu.Unlock()
		return domain.WrapError(domain.ErrState, "fail stage",
			fmt.Errorf("stage %s already %s", stage, state.Status))
	}
	finished := t.now()
	state.Status = StageFailed
	state.FinishedAt = &finished
	if state.StartedAt != nil {
		state.DurationMs = float64(finished.Sub(*state.StartedAt).Microseconds()) / 1000.0
	}
	errMessage := ""
	if cause != nil {
		errMessage = cause.Error()
	}
	state.Error = errMessage
	lastCompleted := t.lastCompletedLocked()
	t.mu.Unlock()

	t.log.Error("stage_failed", "stage", string(stage), "error", errMessage)
	if t.sink != nil {
		if err := t.sink(ctx, t.documentID, domain.StatusError, errMessage, lastCompleted); err != nil {
			return fmt.Errorf("report stage failure: %w", err)
		}
	}
	return nil
}

// SkipStage marks a pending stage skipped after construction, e.g. when a
// non-PDF document reaches pdf_conversion.
func (t *Tracker) SkipStage(stage Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.stages[stage]
	if !ok {
		return domain.WrapError(domain.ErrState, "skip stage", fmt.Errorf("unknown stage %q", stage))
	}
	if state.Status != StagePending {
		return domain.WrapError(domain.ErrState, "skip stage",
			fmt.Errorf("stage %s is %s, want pending", stage, state.Status))
	}
	state.Status = StageSkipped
	return nil
}

func (t *Tracker) StageState(stage Stage) (StageState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.stages[stage]
	if !ok {
		return StageState{}, false
	}
	return *state, true
}

// Progress reports overall status, percent complete over non-skipped
// stages, per-stage detail, and elapsed time since construction.
func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := 0
	completed := 0
	failed := false
	stages := make(map[Stage]*StageState, len(t.stages))
	for _, stage := range stageOrder {
		state := *t.stages[stage]
		stages[stage] = &state
		if state.Status == StageSkipped {
			continue
		}
		total++
		switch state.Status {
		case StageCompleted:
			completed++
		case StageFailed:
			failed = true
		}
	}

	status := OverallProcessing
	switch {
	case failed:
		status = OverallFailed
	case total > 0 && completed == total:
		status = OverallCompleted
	}

	percent := 0.0
	if total > 0 {
		percent = 100.0 * float64(completed) / float64(total)
	}

	return Progress{
		Status:          status,
		PercentComplete: percent,
		Stages:          stages,
		ElapsedMs:       float64(t.now().Sub(t.createdAt).Microseconds()) / 1000.0,
	}
}

func (t *Tracker) allNonSkippedCompletedLocked() bool {
	for _, stage := range stageOrder {
		state := t.stages[stage]
		if state.Status == StageSkipped {
			continue
		}
		if state.Status != StageCompleted {
			return false
		}
	}
	return true
}

func (t *Tracker) lastCompletedLocked() string {
	last := ""
	for _, stage := range stageOrder {
		if t.stages[stage].Status == StageCompleted {
			last = string(stage)
		}
	}
	return last
}
