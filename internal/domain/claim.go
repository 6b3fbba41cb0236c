package domain

import (
	"fmt"
	"time"
)

// ErrorKind is the claim failure taxonomy.
type ErrorKind string

const (
	KindLocationUnavailable ErrorKind = "LocationUnavailable"
	KindIneligible          ErrorKind = "Ineligible"
	KindWrongNetwork        ErrorKind = "WrongNetwork"
	KindAddressMismatch     ErrorKind = "AddressMismatch"
	KindSubmissionFailed    ErrorKind = "SubmissionFailed"
	KindConfirmationFailed  ErrorKind = "ConfirmationFailed"
	KindConfirmationTimeout ErrorKind = "ConfirmationTimeout"
	KindUnsupported         ErrorKind = "Unsupported"
	KindInProgress          ErrorKind = "InProgress"
	KindUnknownTarget       ErrorKind = "UnknownTarget"
)

// ClaimReason is the machine-readable reason attached to a failed attempt.
type ClaimReason string

const (
	ClaimNoLocation          ClaimReason = "no-location"
	ClaimTooFar              ClaimReason = "too-far"
	ClaimWrongNetwork        ClaimReason = "wrong-network"
	ClaimNoAccount           ClaimReason = "no-account"
	ClaimAddressMismatch     ClaimReason = "address-mismatch"
	ClaimInvalidAmount       ClaimReason = "invalid-amount"
	ClaimSubmissionFailed    ClaimReason = "submission-failed"
	ClaimConfirmationFailed  ClaimReason = "confirmation-failed"
	ClaimConfirmationTimeout ClaimReason = "confirmation-timeout"
	ClaimInProgress          ClaimReason = "claim-in-progress"
	ClaimUnknownTarget       ClaimReason = "unknown-target"
	ClaimUnsupported         ClaimReason = "unsupported"
)

// ClaimError describes why an attempt ended in failure.
type ClaimError struct {
	Kind     ErrorKind   `json:"kind"`
	Reason   ClaimReason `json:"reason"`
	Message  string      `json:"message"`
	Distance *float64    `json:"distance_meters,omitempty"`
	Err      error       `json:"-"`
}

func (e *ClaimError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// ClaimResult is produced once per attempt.
type ClaimResult struct {
	AttemptID       string      `json:"attempt_id"`
	Success         bool        `json:"success"`
	TransactionHash string      `json:"transaction_hash,omitempty"`
	Error           *ClaimError `json:"error,omitempty"`
}

// ClaimEvent is the audit record published for every finished attempt.
type ClaimEvent struct {
	AttemptID  string    `json:"attempt_id"`
	Kind       string    `json:"kind"` // "claim" or "purchase"
	TokenID    string    `json:"token_id,omitempty"`
	Address    string    `json:"address"`
	Success    bool      `json:"success"`
	Reason     string    `json:"reason,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Distance   *float64  `json:"distance_meters,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Outcome is the metric/header label for the event.
func (e ClaimEvent) Outcome() string {
	if e.Success {
		return "success"
	}
	return e.Reason
}

// NewClaimEvent stamps an event with the package clock.
func NewClaimEvent(kind, attemptID, tokenID, address string, result ClaimResult, distance *float64) ClaimEvent {
	ev := ClaimEvent{
		AttemptID:  attemptID,
		Kind:       kind,
		TokenID:    tokenID,
		Address:    address,
		Success:    result.Success,
		TxHash:     result.TransactionHash,
		Distance:   distance,
		OccurredAt: clock.Now().UTC(),
	}
	if result.Error != nil {
		ev.Reason = string(result.Error.Reason)
	}
	return ev
}
