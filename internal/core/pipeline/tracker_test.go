package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

type sinkCall struct {
	status    domain.DocumentStatus
	errMsg    string
	lastStage string
}

type sinkRecorder struct {
	calls []sinkCall
	err   error
}

func (s *sinkRecorder) sink(_ context.Context, _ string, status domain.DocumentStatus, errMessage, lastStage string) error {
	s.calls = append(s.calls, sinkCall{status: status, errMsg: errMessage, lastStage: lastStage})
	return s.err
}

func newTestTracker(rec *sinkRecorder, features Features) *Tracker {
	return NewTracker("doc-1", features, rec.sink, nil)
}

func runStage(t *testing.T, tr *Tracker, stage Stage) {
	t.Helper()
	if err := tr.StartStage(context.Background(), stage); err != nil {
		t.Fatalf("StartStage(%s) error = %v", stage, err)
	}
	if err := tr.CompleteStage(context.Background(), stage, nil); err != nil {
		t.Fatalf("CompleteStage(%s) error = %v", stage, err)
	}
}

func TestStartStageTwiceReturnsStateError(t *testing.T) {
	tr := newTestTracker(&sinkRecorder{}, Features{})

	if err := tr.StartStage(context.Background(), StageUpload); err != nil {
		t.Fatalf("first StartStage error = %v", err)
	}
	err := tr.StartStage(context.Background(), StageUpload)
	if !domain.IsKind(err, domain.ErrState) {
		t.Fatalf("second StartStage error = %v, want ErrState", err)
	}
}

func TestCompleteWithoutStartReturnsStateError(t *testing.T) {
	tr := newTestTracker(&sinkRecorder{}, Features{})

	err := tr.CompleteStage(context.Background(), StageChunking, nil)
	if !domain.IsKind(err, domain.ErrState) {
		t.Fatalf("CompleteStage error = %v, want ErrState", err)
	}
}

func TestAllStagesCompletedYieldsProcessed(t *testing.T) {
	rec := &sinkRecorder{}
	tr := newTestTracker(rec, Features{})

	stages := []Stage{
		StageUpload, StageTextExtraction, StageChunking,
		StageADEProcessing, StageEmbeddingGeneration, StageIndexing, StageCompletion,
	}
	for _, stage := range stages {
		runStage(t, tr, stage)
	}

	progress := tr.Progress()
	if progress.Status != OverallCompleted {
		t.Fatalf("overall status = %s, want completed", progress.Status)
	}
	if progress.PercentComplete != 100 {
		t.Fatalf("percent = %v, want 100", progress.PercentComplete)
	}

	last := rec.calls[len(rec.calls)-1]
	if last.status != domain.StatusProcessed {
		t.Fatalf("final document status = %s, want processed", last.status)
	}
}

func TestOptionalStagesPreSkipped(t *testing.T) {
	tr := newTestTracker(&sinkRecorder{}, Features{})

	state, ok := tr.StageState(StagePDFConversion)
	if !ok || state.Status != StageSkipped {
		t.Fatalf("pdf_conversion = %+v, want skipped", state)
	}
	state, ok = tr.StageState(StageMultimodalEmbedding)
	if !ok || state.Status != StageSkipped {
		t.Fatalf("multimodal_embedding = %+v, want skipped", state)
	}

	tr = newTestTracker(&sinkRecorder{}, Features{PDFConversion: true, MultimodalEmbedding: true})
	state, _ = tr.StageState(StagePDFConversion)
	if state.Status != StagePending {
		t.Fatalf("pdf_conversion = %s, want pending when enabled", state.Status)
	}
}

func TestFailStageMovesDocumentToError(t *testing.T) {
	rec := &sinkRecorder{}
	tr := newTestTracker(rec, Features{})

	runStage(t, tr, StageUpload)
	runStage(t, tr, StageTextExtraction)
	if err := tr.StartStage(context.Background(), StageChunking); err != nil {
		t.Fatalf("StartStage error = %v", err)
	}
	if err := tr.FailStage(context.Background(), StageChunking, errors.New("splitter blew up")); err != nil {
		t.Fatalf("FailStage error = %v", err)
	}

	state, _ := tr.StageState(StageChunking)
	if state.Status != StageFailed || state.Error != "splitter blew up" {
		t.Fatalf("failed stage state = %+v", state)
	}

	last := rec.calls[len(rec.calls)-1]
	if last.status != domain.StatusError {
		t.Fatalf("document status = %s, want error", last.status)
	}
	if last.errMsg != "splitter blew up" {
		t.Fatalf("error message = %q", last.errMsg)
	}
	if last.lastStage != string(StageTextExtraction) {
		t.Fatalf("last completed stage = %q, want text_extraction", last.lastStage)
	}

	if tr.Progress().Status != OverallFailed {
		t.Fatalf("overall status = %s, want failed", tr.Progress().Status)
	}
}

func TestFailStageOnCompletedStageReturnsStateError(t *testing.T) {
	tr := newTestTracker(&sinkRecorder{}, Features{})
	runStage(t, tr, StageUpload)

	err := tr.FailStage(context.Background(), StageUpload, errors.New("late cancel"))
	if !domain.IsKind(err, domain.ErrState) {
		t.Fatalf("FailStage error = %v, want ErrState", err)
	}
}

func TestProgressCountsNonSkippedOnly(t *testing.T) {
	tr := newTestTracker(&sinkRecorder{}, Features{})

	runStage(t, tr, StageUpload)
	progress := tr.Progress()
	// 7 non-skipped stages, 1 completed.
	want := 100.0 / 7.0
	if diff := progress.PercentComplete - want; diff > 0.001 || diff < -0.001 {
		t.Fatalf("percent = %v, want %v", progress.PercentComplete, want)
	}
	if progress.Status != OverallProcessing {
		t.Fatalf("overall status = %s, want processing", progress.Status)
	}
}

func TestDocumentStatusMapping(t *testing.T) {
	cases := map[Stage]domain.DocumentStatus{
		StageUpload:              domain.StatusUploaded,
		StageTextExtraction:      domain.StatusTextExtracted,
		StageChunking:            domain.StatusChunked,
		StagePDFConversion:       domain.StatusImagesExtracted,
		StageADEProcessing:       domain.StatusADEProcessed,
		StageEmbeddingGeneration: domain.StatusEmbedded,
		StageMultimodalEmbedding: domain.StatusEmbedded,
		StageCompletion:          domain.StatusProcessed,
		Stage("mystery_stage"):   domain.StatusProcessing,
	}
	for stage, want := range cases {
		if got := DocumentStatusFor(stage); got != want {
			t.Fatalf("DocumentStatusFor(%s) = %s, want %s", stage, got, want)
		}
	}
}
