package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeClaimSubmitted     = "claim.submitted"
	EventTypeClaimStatusChanged = "claim.status_changed"
)

type ClaimSubmittedEvent struct {
	BaseEvent
	ClaimID           int64           `json:"claim_id"`
	LecturerID        int64           `json:"lecturer_id"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            string          `json:"status"`
	NeedsManualReview bool            `json:"needs_manual_review"`
}

func NewClaimSubmittedEvent(claimID, lecturerID int64, total decimal.Decimal, status string, needsReview bool) *ClaimSubmittedEvent {
	return &ClaimSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeClaimSubmitted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"claim_id":            claimID,
				"lecturer_id":         lecturerID,
				"total_amount":        total.String(),
				"status":              status,
				"needs_manual_review": needsReview,
			},
		},
		ClaimID:           claimID,
		LecturerID:        lecturerID,
		TotalAmount:       total,
		Status:            status,
		NeedsManualReview: needsReview,
	}
}

type ClaimStatusChangedEvent struct {
	BaseEvent
	ClaimID     int64  `json:"claim_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	Action      string `json:"action"`
	ActorUserID int64  `json:"actor_user_id"`
}

func NewClaimStatusChangedEvent(claimID int64, from, to, action string, actorUserID int64) *ClaimStatusChangedEvent {
	return &ClaimStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeClaimStatusChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"claim_id":      claimID,
				"from":          from,
				"to":            to,
				"action":        action,
				"actor_user_id": actorUserID,
			},
		},
		ClaimID:     claimID,
		From:        from,
		To:          to,
		Action:      action,
		ActorUserID: actorUserID,
	}
}
