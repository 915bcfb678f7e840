package reward

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the payout lifecycle state of a committed reward. Transitions
// are admin-driven; the calculator only ever produces StatusPending.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
	StatusRejected Status = "rejected"
)

var ErrInvalidTransition = errors.New("invalid reward status transition")

func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusPaid:
		return StatusPaid, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("unknown reward status %q", raw)
	}
}

// Transition validates one lifecycle step: pending → approved → paid, with
// rejected reachable from any non-paid state and terminal.
func Transition(from, to Status) error {
	allowed := false
	switch to {
	case StatusApproved:
		allowed = from == StatusPending
	case StatusPaid:
		allowed = from == StatusApproved
	case StatusRejected:
		allowed = from == StatusPending || from == StatusApproved
	case StatusPending:
		allowed = false
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
