package domain

import "time"

// StageEvent is the ingestion stage-transition message exchanged with the
// external orchestrator. Payload varies per stage (text-extraction carries
// textLength, embedding carries embeddingCount, ...).
type StageEvent struct {
	DocumentID string         `json:"documentId"`
	UserID     string         `json:"userId"`
	Stage      string         `json:"stage"`
	OccurredAt time.Time      `json:"occurredAt,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}
