package domain

import "github.com/smallbiznis/quoteflow/internal/document"

// Status is the invoice lifecycle state. There is no stored state for a
// partially paid invoice; it stays PENDING (or OVERDUE) until the payment
// ledger covers the full amount.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
	StatusOverdue   Status = "OVERDUE"
)

// Trigger names a lifecycle operation for transition validation and
// diagnostics.
type Trigger string

const (
	TriggerMarkAsPending Trigger = "mark_as_pending"
	TriggerAddPayment    Trigger = "add_payment"
	TriggerCancel        Trigger = "cancel"
	TriggerMarkAsOverdue Trigger = "mark_as_overdue"
	TriggerReplaceItems  Trigger = "replace_items"
)

// transitions is the full invoice state machine. The add_payment entries
// name the status reached when a payment settles the invoice; a payment
// that leaves a balance keeps the current status.
var transitions = map[Trigger]map[Status]Status{
	TriggerMarkAsPending: {
		StatusDraft: StatusPending,
	},
	TriggerAddPayment: {
		StatusPending: StatusPaid,
		StatusOverdue: StatusPaid,
	},
	TriggerCancel: {
		StatusPending: StatusCancelled,
	},
	TriggerMarkAsOverdue: {
		StatusPending: StatusOverdue,
	},
}

// Next resolves the status a trigger leads to from the current status, or
// an InvalidTransitionError naming both.
func Next(current Status, trigger Trigger) (Status, error) {
	if next, ok := transitions[trigger][current]; ok {
		return next, nil
	}
	return "", &document.InvalidTransitionError{Status: string(current), Trigger: string(trigger)}
}

// Terminal reports whether no further transitions are defined from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Editable reports whether the invoice's items and commercial terms may
// still be replaced. Once an invoice leaves DRAFT its amounts are fixed.
func (s Status) Editable() bool {
	return s == StatusDraft
}
