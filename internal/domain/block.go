package domain

import (
	"time"

	"github.com/google/uuid"
)

// Block is a directed visibility suppression edge: BlockerID no longer sees BlockedID.
type Block struct {
	ID        uuid.UUID `json:"id"`
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Report struct {
	ID         uuid.UUID `json:"id"`
	ReporterID string    `json:"reporter_id"`
	ReportedID string    `json:"reported_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
