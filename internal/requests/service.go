package requests

import (
	"context"

	"bloodlink/internal/membership"
	"bloodlink/pkg/eventstore"

	"github.com/google/uuid"
)

// Service defines the interface for the request lifecycle manager.
type Service interface {
	CreateRequest(ctx context.Context, requestor *membership.Person, bloodGroup string, units int) (*BloodRequest, error)
	AcceptRequest(ctx context.Context, donor *membership.Person, requestID uuid.UUID) (*BloodRequest, error)
	ConfirmRequest(ctx context.Context, requestor *membership.Person, requestID uuid.UUID) (*BloodRequest, error)
	GetRequest(ctx context.Context, requestID uuid.UUID) (*BloodRequest, error)
	ListActiveRequests(ctx context.Context) ([]*BloodRequest, error)
	RequestsForUser(ctx context.Context, email string, role membership.Role) ([]*BloodRequest, error)
	DonationsFor(ctx context.Context, donorEmail string) ([]DonationRecord, error)
	History(ctx context.Context, requestID uuid.UUID) ([]eventstore.Event, error)
}
