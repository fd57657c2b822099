// Package simulate replays one option contract's life: its strike
// board accumulating from listing to expiry, and its Greeks trajectory
// along a supplied historical path.
package simulate

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks malformed simulation inputs.
var ErrInvalidInput = errors.New("invalid simulation input")

// Side is the option side of a simulated contract.
type Side int

const (
	Call Side = iota
	Put
)

func (s Side) String() string {
	if s == Put {
		return "put"
	}
	return "call"
}

// IsCall reports whether the side is a call.
func (s Side) IsCall() bool { return s == Call }

// DNA is the immutable identity of one simulated contract, fixed at
// birth. Every piece of downstream state (current DTE, Greeks) is
// derived from it; nothing ever mutates it.
type DNA struct {
	AnchorSpot float64   `json:"anchor_spot"` // spot at contract birth
	AnchorIV   float64   `json:"anchor_iv"`   // ATM vol at contract birth
	BirthDTE   int       `json:"birth_dte"`   // days to expiration at birth
	BirthTime  time.Time `json:"birth_time"`
	Strike     float64   `json:"strike"`
	Side       Side      `json:"side"`
}

// Validate checks the birth parameters.
func (d DNA) Validate() error {
	if d.AnchorSpot <= 0 {
		return fmt.Errorf("%w: anchor spot %f", ErrInvalidInput, d.AnchorSpot)
	}
	if d.AnchorIV < 0 {
		return fmt.Errorf("%w: anchor iv %f", ErrInvalidInput, d.AnchorIV)
	}
	if d.BirthDTE <= 0 {
		return fmt.Errorf("%w: birth dte %d", ErrInvalidInput, d.BirthDTE)
	}
	if d.Strike < 0 {
		return fmt.Errorf("%w: strike %f", ErrInvalidInput, d.Strike)
	}
	return nil
}

// Expiry returns the contract's expiration instant.
func (d DNA) Expiry() time.Time {
	return d.BirthTime.AddDate(0, 0, d.BirthDTE)
}
