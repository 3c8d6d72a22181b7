package booking

import (
	"campsite/models"
)

// Transitions is the directed graph of allowed user-driven status changes.
// It is injected into the service rather than read as package state, so the
// state machine stays testable in isolation.
type Transitions map[models.Status][]models.Status

// DefaultTransitions returns the production transition table.
func DefaultTransitions() Transitions {
	return Transitions{
		models.StatusNew:       {models.StatusPending, models.StatusConfirmed, models.StatusCancelled},
		models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled},
		models.StatusConfirmed: {models.StatusCancelled},
		models.StatusInvoice:   {models.StatusCompleted},
		models.StatusCompleted: {},
		models.StatusArchived:  {},
		models.StatusCancelled: {models.StatusNew},
	}
}

// Can reports whether the table contains the (from, to) edge.
func (t Transitions) Can(from, to models.Status) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// States bundles the status names and the transition table for the web
// layer's buttons.
type States struct {
	Names       []models.Status `json:"names"`
	Transitions Transitions     `json:"transitions"`
}
