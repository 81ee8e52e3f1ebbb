package donors

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bloodlink/internal/compatibility"
	"bloodlink/internal/membership"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/requests"
	"bloodlink/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// service composes the membership registry and the request manager. It holds
// no state of its own.
type service struct {
	members  membership.Service
	requests requests.Service
	logger   *slog.Logger
}

type Option func(*service)

func WithLogger(l *slog.Logger) Option {
	return func(s *service) { s.logger = l }
}

// NewService creates a new donor directory instance.
func NewService(members membership.Service, reqs requests.Service, opts ...Option) Service {
	s := &service{
		members:  members,
		requests: reqs,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) ListDonors(ctx context.Context, bloodGroup string) ([]*membership.Person, error) {
	all, err := s.members.ListDonors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	if strings.TrimSpace(bloodGroup) == "" {
		return all, nil
	}

	group, err := compatibility.ParseBloodGroup(bloodGroup)
	if err != nil {
		return nil, err
	}
	return compatibility.FilterCompatibleDonors(string(group), all), nil
}

func (s *service) GetProfile(ctx context.Context, email string) (*Profile, error) {
	person, err := s.members.GetPerson(ctx, email)
	if err != nil {
		return nil, err
	}
	if person.Role != membership.RoleDonor {
		return nil, fmt.Errorf("donor %s: %w", person.Email, sentinel.ErrNotFound)
	}

	donations, err := s.requests.DonationsFor(ctx, person.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load donations: %w", err)
	}

	active, err := s.requests.ListActiveRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	// mirrors the active view, so confirmed requests are listed too
	open := make([]*requests.BloodRequest, 0)
	for _, req := range active {
		if compatibility.IsCompatible(string(person.BloodGroup), string(req.BloodGroup)) {
			open = append(open, req)
		}
	}

	return &Profile{
		Donor:              person,
		Donations:          donations,
		CompatibleRequests: open,
	}, nil
}

func (s *service) CompatibleDonorsForRequest(ctx context.Context, requestID uuid.UUID) ([]*membership.Person, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	all, err := s.members.ListDonors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}

	matches := compatibility.FilterCompatibleDonors(string(req.BloodGroup), all)
	s.logger.DebugContext(ctx, "matched donors for request",
		"request_id", requestID,
		"blood_group", req.BloodGroup,
		"matches", len(matches),
	)
	return matches, nil
}
