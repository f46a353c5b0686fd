package domain

import "github.com/smallbiznis/quoteflow/internal/document"

// Status is the quote lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusOnHold    Status = "ON_HOLD"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
	StatusConverted Status = "CONVERTED"
)

// Trigger names a lifecycle operation for transition validation and
// diagnostics.
type Trigger string

const (
	TriggerMarkAsSent      Trigger = "mark_as_sent"
	TriggerMarkAsAccepted  Trigger = "mark_as_accepted"
	TriggerMarkAsRejected  Trigger = "mark_as_rejected"
	TriggerMarkAsOnHold    Trigger = "mark_as_on_hold"
	TriggerMarkAsCancelled Trigger = "mark_as_cancelled"
	TriggerMarkAsExpired   Trigger = "mark_as_expired"
	TriggerConvert         Trigger = "convert_to_invoice"
	TriggerReplaceItems    Trigger = "replace_items"
)

// transitions is the full quote state machine: trigger -> current status ->
// next status. Any (status, trigger) pair not present here is invalid.
var transitions = map[Trigger]map[Status]Status{
	TriggerMarkAsSent: {
		StatusDraft:  StatusSent,
		StatusOnHold: StatusSent,
	},
	TriggerMarkAsAccepted: {
		StatusSent:   StatusAccepted,
		StatusOnHold: StatusAccepted,
	},
	TriggerMarkAsRejected: {
		StatusSent:   StatusRejected,
		StatusOnHold: StatusRejected,
	},
	TriggerMarkAsOnHold: {
		StatusSent: StatusOnHold,
	},
	TriggerMarkAsCancelled: {
		StatusSent:   StatusCancelled,
		StatusOnHold: StatusCancelled,
	},
	TriggerMarkAsExpired: {
		StatusSent:   StatusExpired,
		StatusOnHold: StatusExpired,
	},
	TriggerConvert: {
		StatusAccepted: StatusConverted,
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
	case StatusRejected, StatusExpired, StatusCancelled, StatusConverted:
		return true
	}
	return false
}

// Editable reports whether the quote's items and commercial terms may still
// be replaced.
func (s Status) Editable() bool {
	switch s {
	case StatusDraft, StatusSent, StatusOnHold:
		return true
	}
	return false
}
