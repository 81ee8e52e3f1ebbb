package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"bloodlink/internal/compatibility"
	"bloodlink/internal/membership"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/pkg/eventstore"
	"bloodlink/pkg/platform/sentinel"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const aggregateType = "blood_request"

// service implements the Service interface. mu guards every read-modify-write
// of the request collection and donation logs, so the status check and the
// mutation of a transition are one atomic step.
type service struct {
	mu        sync.Mutex
	requests  []*BloodRequest
	byID      map[uuid.UUID]*BloodRequest
	donations map[string][]DonationRecord

	eventStore eventstore.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures the request service.
type Option func(*service)

func WithLogger(l *slog.Logger) Option {
	return func(s *service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new request lifecycle service instance.
func NewService(es eventstore.Store, opts ...Option) Service {
	s := &service{
		byID:       make(map[uuid.UUID]*BloodRequest),
		donations:  make(map[string][]DonationRecord),
		eventStore: es,
		logger:     logger.Discard(),
		tracer:     otel.Tracer("bloodlink/requests"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseUnits parses a unit count given as text; only positive integers pass.
func ParseUnits(raw string) (int, error) {
	units, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || units <= 0 {
		return 0, fmt.Errorf("%w: units must be a positive number", sentinel.ErrValidation)
	}
	return units, nil
}

// CreateRequest opens a new request in the Requested state.
func (s *service) CreateRequest(ctx context.Context, requestor *membership.Person, bloodGroup string, units int) (*BloodRequest, error) {
	ctx, span := s.tracer.Start(ctx, "requests.create")
	defer span.End()

	if requestor == nil || requestor.Role != membership.RoleRequestor {
		return nil, s.deny(ctx, span, "create", fmt.Errorf("%w: only requestors can create requests", sentinel.ErrRoleMismatch))
	}
	group, err := compatibility.ParseBloodGroup(bloodGroup)
	if err != nil {
		return nil, s.deny(ctx, span, "create", err)
	}
	if units <= 0 {
		return nil, s.deny(ctx, span, "create", fmt.Errorf("%w: units must be a positive number", sentinel.ErrValidation))
	}

	now := s.now().UTC()
	req := &BloodRequest{
		ID:               uuid.New(),
		BloodGroup:       group,
		Units:            units,
		RequestorEmail:   requestor.Email,
		RequestorName:    requestor.Name,
		Status:           StatusRequested,
		CompatibleDonors: compatibility.CompatibleDonors(string(group)),
		CreatedAt:        now,
	}
	span.SetAttributes(attribute.String("request.id", req.ID.String()), attribute.String("request.blood_group", string(group)))

	event, err := eventstore.NewEvent("RequestCreated", RequestCreatedEvent{
		RequestID:      req.ID,
		BloodGroup:     group,
		Units:          units,
		RequestorEmail: requestor.Email,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.eventStore.AppendEvents(ctx, req.ID, aggregateType, 0, []eventstore.Event{event}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	req.Version = 1

	s.requests = append(s.requests, req)
	s.byID[req.ID] = req

	s.metrics.IncRequestsCreated(string(group))
	s.logger.InfoContext(ctx, "blood request created",
		"request_id", req.ID,
		"blood_group", group,
		"units", units,
	)
	return req.clone(), nil
}

// AcceptRequest assigns donor to a Requested request. Checks run in order:
// existence, donor role, status, blood group compatibility.
func (s *service) AcceptRequest(ctx context.Context, donor *membership.Person, requestID uuid.UUID) (*BloodRequest, error) {
	ctx, span := s.tracer.Start(ctx, "requests.accept", trace.WithAttributes(attribute.String("request.id", requestID.String())))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[requestID]
	if !ok {
		return nil, s.deny(ctx, span, "accept", fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound))
	}
	if donor == nil || donor.Role != membership.RoleDonor {
		return nil, s.deny(ctx, span, "accept", fmt.Errorf("%w: only donors can accept requests", sentinel.ErrRoleMismatch))
	}
	if err := req.Status.transition(StatusAccepted); err != nil {
		return nil, s.deny(ctx, span, "accept", err)
	}
	// the donor supplies blood to the requested group
	if !compatibility.IsCompatible(string(donor.BloodGroup), string(req.BloodGroup)) {
		return nil, s.deny(ctx, span, "accept", fmt.Errorf("%w: your blood group (%s) is not compatible with the requested blood group (%s)",
			sentinel.ErrIncompatibleBloodGroup, donor.BloodGroup, req.BloodGroup))
	}

	now := s.now().UTC()
	event, err := eventstore.NewEvent("RequestAccepted", RequestAcceptedEvent{
		RequestID:       req.ID,
		DonorEmail:      donor.Email,
		DonorBloodGroup: donor.BloodGroup,
		AcceptedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEvents(ctx, req.ID, aggregateType, req.Version, []eventstore.Event{event}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	req.DonorEmail = donor.Email
	req.DonorName = donor.Name
	req.Status = StatusAccepted
	req.AcceptedAt = &now
	req.Version++

	s.donations[donor.Email] = append(s.donations[donor.Email], DonationRecord{
		RequestID:      req.ID,
		BloodGroup:     req.BloodGroup,
		RequestorEmail: req.RequestorEmail,
		DonatedAt:      now,
	})

	s.metrics.IncRequestsAccepted(string(donor.BloodGroup))
	s.logger.InfoContext(ctx, "blood request accepted",
		"request_id", req.ID,
		"donor_blood_group", donor.BloodGroup,
	)
	return req.clone(), nil
}

// ConfirmRequest marks an Accepted request as received. Checks run in order:
// existence, ownership, status.
func (s *service) ConfirmRequest(ctx context.Context, requestor *membership.Person, requestID uuid.UUID) (*BloodRequest, error) {
	ctx, span := s.tracer.Start(ctx, "requests.confirm", trace.WithAttributes(attribute.String("request.id", requestID.String())))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[requestID]
	if !ok {
		return nil, s.deny(ctx, span, "confirm", fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound))
	}
	if requestor == nil || req.RequestorEmail != requestor.Email {
		return nil, s.deny(ctx, span, "confirm", fmt.Errorf("%w: you can only confirm your own requests", sentinel.ErrNotOwner))
	}
	if err := req.Status.transition(StatusConfirmed); err != nil {
		return nil, s.deny(ctx, span, "confirm", err)
	}

	now := s.now().UTC()
	event, err := eventstore.NewEvent("RequestConfirmed", RequestConfirmedEvent{
		RequestID:   req.ID,
		ConfirmedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.eventStore.AppendEvents(ctx, req.ID, aggregateType, req.Version, []eventstore.Event{event}); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	req.Status = StatusConfirmed
	req.ConfirmedAt = &now
	req.Version++

	s.metrics.IncRequestsConfirmed()
	s.logger.InfoContext(ctx, "blood request confirmed", "request_id", req.ID)
	return req.clone(), nil
}

// GetRequest returns one request by id.
func (s *service) GetRequest(ctx context.Context, requestID uuid.UUID) (*BloodRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byID[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	return req.clone(), nil
}

// ListActiveRequests returns requests that are Requested or Confirmed, in
// creation order.
//
// Accepted requests are left out of this view. That matches the behaviour
// the dashboard has always had, even though an accepted but unconfirmed
// request is arguably still active.
func (s *service) ListActiveRequests(ctx context.Context) ([]*BloodRequest, error) {
	return s.filter(func(r *BloodRequest) bool {
		return r.Status == StatusRequested || r.Status == StatusConfirmed
	}), nil
}

// RequestsForUser returns the requests a requestor authored, or the requests
// a donor accepted.
func (s *service) RequestsForUser(ctx context.Context, email string, role membership.Role) ([]*BloodRequest, error) {
	email = membership.NormalizeEmail(email)
	switch role {
	case membership.RoleRequestor:
		return s.filter(func(r *BloodRequest) bool { return r.RequestorEmail == email }), nil
	case membership.RoleDonor:
		return s.filter(func(r *BloodRequest) bool { return r.DonorEmail == email }), nil
	default:
		return []*BloodRequest{}, nil
	}
}

// DonationsFor returns a copy of the donor's donation log.
func (s *service) DonationsFor(ctx context.Context, donorEmail string) ([]DonationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.donations[membership.NormalizeEmail(donorEmail)]
	out := make([]DonationRecord, len(log))
	copy(out, log)
	return out, nil
}

// History returns the journaled transitions of a request.
func (s *service) History(ctx context.Context, requestID uuid.UUID) ([]eventstore.Event, error) {
	if _, err := s.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	events, err := s.eventStore.LoadEvents(ctx, requestID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}

func (s *service) filter(keep func(*BloodRequest) bool) []*BloodRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*BloodRequest, 0)
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	return out
}

// deny records a rejected transition and returns err unchanged.
func (s *service) deny(ctx context.Context, span trace.Span, operation string, err error) error {
	reason := "other"
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, sentinel.ErrRoleMismatch):
		reason = "role_mismatch"
	case errors.Is(err, sentinel.ErrInvalidState):
		reason = "invalid_state"
	case errors.Is(err, sentinel.ErrIncompatibleBloodGroup):
		reason = "incompatible_blood_group"
	case errors.Is(err, sentinel.ErrNotOwner):
		reason = "not_owner"
	case errors.Is(err, sentinel.ErrValidation):
		reason = "validation"
	}

	span.SetStatus(codes.Error, reason)
	s.metrics.IncTransitionDenied(operation, reason)
	s.logger.DebugContext(ctx, "transition denied", "operation", operation, "reason", reason, "error", err)
	return err
}
