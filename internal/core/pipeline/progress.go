package pipeline

import (
	"github.com/kosarev-dev/docpipe/internal/core/domain"
)

// ProgressFromDocument reconstructs coarse progress from the durable
// document record alone, for callers without a live tracker (the API
// process answers progress queries while the worker owns the tracker).
func ProgressFromDocument(doc *domain.Document, features Features) Progress {
	stages := make(map[Stage]*StageState, len(stageOrder))
	for _, stage := range stageOrder {
		stages[stage] = &StageState{Status: StagePending}
	}
	if !features.PDFConversion {
		stages[StagePDFConversion].Status = StageSkipped
	}
	if !features.MultimodalEmbedding {
		stages[StageMultimodalEmbedding].Status = StageSkipped
	}

	lastDone := lastCompletedStage(doc)
	// A freshly uploaded (or reprocess-reset) document starts over even
	// if an older run left a stage marker behind.
	if doc.Status == domain.StatusUploaded {
		lastDone = ""
	}
	if lastDone != "" {
		for _, stage := range stageOrder {
			if stages[stage].Status != StageSkipped {
				stages[stage].Status = StageCompleted
			}
			if stage == lastDone {
				break
			}
		}
	}

	status := OverallProcessing
	switch doc.Status {
	case domain.StatusProcessed:
		status = OverallCompleted
		for _, stage := range stageOrder {
			if stages[stage].Status != StageSkipped {
				stages[stage].Status = StageCompleted
			}
		}
	case domain.StatusError:
		status = OverallFailed
		next := nextPendingStage(stages)
		if next != "" {
			stages[next].Status = StageFailed
			stages[next].Error = doc.Error
		}
	}

	total := 0
	completed := 0
	for _, stage := range stageOrder {
		if stages[stage].Status == StageSkipped {
			continue
		}
		total++
		if stages[stage].Status == StageCompleted {
			completed++
		}
	}
	percent := 0.0
	if total > 0 {
		percent = 100.0 * float64(completed) / float64(total)
	}

	return Progress{
		Status:          status,
		PercentComplete: percent,
		Stages:          stages,
	}
}

func lastCompletedStage(doc *domain.Document) Stage {
	if doc.LastCompletedStage == "" {
		return ""
	}
	candidate := Stage(doc.LastCompletedStage)
	for _, stage := range stageOrder {
		if stage == candidate {
			return candidate
		}
	}
	return ""
}

func nextPendingStage(stages map[Stage]*StageState) Stage {
	for _, stage := range stageOrder {
		if stages[stage].Status == StagePending {
			return stage
		}
	}
	return ""
}
