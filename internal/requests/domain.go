package requests

import (
	"fmt"
	"time"

	"bloodlink/internal/compatibility"
	"bloodlink/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a blood request.
type Status string

const (
	StatusRequested Status = "Requested"
	StatusAccepted  Status = "Accepted"
	StatusConfirmed Status = "Confirmed"
)

// next returns the only state reachable from s, or an InvalidState error
// when s is terminal.
func (s Status) next() (Status, error) {
	switch s {
	case StatusRequested:
		return StatusAccepted, nil
	case StatusAccepted:
		return StatusConfirmed, nil
	case StatusConfirmed:
		return "", fmt.Errorf("%w: request is already confirmed", sentinel.ErrInvalidState)
	default:
		return "", fmt.Errorf("%w: unknown status %q", sentinel.ErrInvalidState, string(s))
	}
}

// transition moves from s to want, failing unless want is the next state.
func (s Status) transition(want Status) error {
	next, err := s.next()
	if err != nil {
		return err
	}
	if next != want {
		return fmt.Errorf("%w: request is %s, cannot move to %s", sentinel.ErrInvalidState, s, want)
	}
	return nil
}

// BloodRequest is a requestor's call for units of a blood group. Name and
// email snapshots let callers render it without further lookups.
type BloodRequest struct {
	ID               uuid.UUID                  `json:"id"`
	BloodGroup       compatibility.BloodGroup   `json:"blood_group"`
	Units            int                        `json:"units"`
	RequestorEmail   string                     `json:"requestor_email"`
	RequestorName    string                     `json:"requestor_name"`
	DonorEmail       string                     `json:"donor_email,omitempty"`
	DonorName        string                     `json:"donor_name,omitempty"`
	Status           Status                     `json:"status"`
	CompatibleDonors []compatibility.BloodGroup `json:"compatible_donors"`
	CreatedAt        time.Time                  `json:"created_at"`
	AcceptedAt       *time.Time                 `json:"accepted_at,omitempty"`
	ConfirmedAt      *time.Time                 `json:"confirmed_at,omitempty"`
	Version          int                        `json:"version"`
}

func (r *BloodRequest) clone() *BloodRequest {
	c := *r
	c.CompatibleDonors = append([]compatibility.BloodGroup(nil), r.CompatibleDonors...)
	if r.AcceptedAt != nil {
		t := *r.AcceptedAt
		c.AcceptedAt = &t
	}
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}

// DonationRecord is appended to a donor's log when they accept a request.
type DonationRecord struct {
	RequestID      uuid.UUID                `json:"request_id"`
	BloodGroup     compatibility.BloodGroup `json:"blood_group"`
	RequestorEmail string                   `json:"requestor_email"`
	DonatedAt      time.Time                `json:"donated_at"`
}

// RequestCreatedEvent is journaled when a request is created.
type RequestCreatedEvent struct {
	RequestID      uuid.UUID                `json:"request_id"`
	BloodGroup     compatibility.BloodGroup `json:"blood_group"`
	Units          int                      `json:"units"`
	RequestorEmail string                   `json:"requestor_email"`
}

// RequestAcceptedEvent is journaled when a donor accepts a request.
type RequestAcceptedEvent struct {
	RequestID       uuid.UUID                `json:"request_id"`
	DonorEmail      string                   `json:"donor_email"`
	DonorBloodGroup compatibility.BloodGroup `json:"donor_blood_group"`
	AcceptedAt      time.Time                `json:"accepted_at"`
}

// RequestConfirmedEvent is journaled when the requestor confirms receipt.
type RequestConfirmedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
