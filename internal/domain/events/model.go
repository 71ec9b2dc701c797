// Package events holds the Event entity: a named fact with a JSON payload,
// recorded in the same transaction as the change it describes.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"txchain/internal/core/apperror"
	"txchain/internal/core/id"
)

// Event names emitted by the services.
const (
	UserOnboarded    = "user_onboarded"
	FundsTransferred = "funds_transferred"
	FundsDeposited   = "funds_deposited"
)

// Event is a recorded domain fact.
type Event struct {
	ID      id.ID           `db:"id" json:"id"`
	Name    string          `db:"name" json:"name"`
	Payload json.RawMessage `db:"payload" json:"payload"`
}

// NewEvent marshals payload and returns an Event with a fresh id.
func NewEvent(name string, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{ID: id.New(), Name: name, Payload: raw}, nil
}

// Validate checks required fields.
func (e *Event) Validate(_ context.Context) error {
	if id.IsNil(e.ID) {
		return apperror.NewValidation("event id is required").WithDetail("field", "id")
	}
	if e.Name == "" {
		return apperror.NewValidation("event name is required").WithDetail("field", "name")
	}
	if !json.Valid(e.Payload) {
		return apperror.NewValidation("event payload must be valid JSON").WithDetail("field", "payload")
	}
	return nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
