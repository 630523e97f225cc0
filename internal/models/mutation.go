package models

import (
	"time"

	"github.com/google/uuid"
)

// MutationKind identifies a queued write operation.
type MutationKind string

const (
	MutationCreateHolding MutationKind = "create_holding"
	MutationUpdateHolding MutationKind = "update_holding"
	MutationDeleteHolding MutationKind = "delete_holding"
)

// PendingMutation is a write that failed with a connectivity-class error and
// awaits replay against the backend. Holding is set for create/update,
// Symbol for delete.
type PendingMutation struct {
	ID        string       `json:"id"`
	Kind      MutationKind `json:"kind"`
	Holding   *Holding     `json:"holding,omitempty"`
	Symbol    string       `json:"symbol,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewHoldingMutation creates a pending create/update mutation.
func NewHoldingMutation(kind MutationKind, holding Holding) PendingMutation {
	return PendingMutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Holding:   &holding,
		Symbol:    holding.Symbol,
		CreatedAt: time.Now(),
	}
}

// NewDeleteMutation creates a pending delete mutation for a symbol.
func NewDeleteMutation(symbol string) PendingMutation {
	return PendingMutation{
		ID:        uuid.NewString(),
		Kind:      MutationDeleteHolding,
		Symbol:    symbol,
		CreatedAt: time.Now(),
	}
}
