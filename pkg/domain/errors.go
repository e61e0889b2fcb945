package domain

import (
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when no record is stored for a vehicle.
var ErrRunNotFound = errors.New("run not found")

// ErrUnknownNode is returned when a name is not a pipeline node.
var ErrUnknownNode = errors.New("unknown node")

// ErrInvalidSeverity is returned for severities outside Low/Medium/High/Critical.
var ErrInvalidSeverity = errors.New("invalid severity")

// ErrBookingUnavailable is returned by schedulers that cannot commit a slot.
var ErrBookingUnavailable = errors.New("booking unavailable")

// ErrGeneratorUnavailable is returned by text generators that are offline.
var ErrGeneratorUnavailable = errors.New("text generator unavailable")

// BookingFailed is the sentinel booking id a scheduler returns instead of an
// error when the service center rejects the request.
const BookingFailed = "BOOKING_FAILED"

// NodeError wraps a failure raised inside a node.
type NodeError struct {
	Node  NodeID
	Cause error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }
