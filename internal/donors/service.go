package donors

import (
	"context"

	"bloodlink/internal/membership"

	"github.com/google/uuid"
)

// Service defines the read-side queries over registered donors.
type Service interface {
	// ListDonors returns every donor, or only those able to supply
	// bloodGroup when it is not empty.
	ListDonors(ctx context.Context, bloodGroup string) ([]*membership.Person, error)
	GetProfile(ctx context.Context, email string) (*Profile, error)
	CompatibleDonorsForRequest(ctx context.Context, requestID uuid.UUID) ([]*membership.Person, error)
}
