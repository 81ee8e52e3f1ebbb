package membership

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bloodlink/internal/compatibility"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/pkg/eventstore"
	"bloodlink/pkg/platform/sentinel"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const aggregateType = "person"

type record struct {
	person     Person
	credential Credential
}

// service implements the Service interface.
type service struct {
	mu      sync.RWMutex
	byEmail map[string]*record
	order   []string

	eventStore  eventstore.Store
	rateLimiter *rate.Limiter
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

// Option configures the membership service.
type Option func(*service)

func WithLogger(l *slog.Logger) Option {
	return func(s *service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) { s.metrics = m }
}

// WithRateLimiter replaces the limiter guarding registration and authentication.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *service) { s.rateLimiter = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// NewService creates a new membership service instance.
func NewService(es eventstore.Store, opts ...Option) Service {
	s := &service{
		byEmail:     make(map[string]*record),
		eventStore:  es,
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Minute/60), 10), // 60 requests per minute
		logger:      logger.Discard(),
		tracer:      otel.Tracer("bloodlink/membership"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterPerson validates the form and creates a new person.
func (s *service) RegisterPerson(ctx context.Context, in RegisterInput) (*Person, error) {
	ctx, span := s.tracer.Start(ctx, "membership.register")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, sentinel.ErrRateLimited
	}

	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", sentinel.ErrValidation)
	}

	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	var bloodGroup compatibility.BloodGroup
	if role == RoleDonor {
		if strings.TrimSpace(in.BloodGroup) == "" {
			return nil, fmt.Errorf("%w: blood group is required for donors", sentinel.ErrValidation)
		}
		bloodGroup, err = compatibility.ParseBloodGroup(in.BloodGroup)
		if err != nil {
			return nil, err
		}
	}

	passwordHash, salt, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.New()
	span.SetAttributes(attribute.String("person.id", id.String()), attribute.String("person.role", string(role)))

	event, err := eventstore.NewEvent("PersonRegistered", PersonRegisteredEvent{
		ID:         id,
		Email:      email,
		Name:       name,
		Role:       role,
		BloodGroup: string(bloodGroup),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, fmt.Errorf("%w: %s", sentinel.ErrDuplicateEmail, email)
	}

	if err := s.eventStore.AppendEvents(ctx, id, aggregateType, 0, []eventstore.Event{event}); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	rec := &record{
		person: Person{
			ID:           id,
			Email:        email,
			Name:         name,
			Role:         role,
			BloodGroup:   bloodGroup,
			RegisteredAt: s.now().UTC(),
			Version:      1,
		},
		credential: Credential{
			PersonID:     id,
			PasswordHash: passwordHash,
			Salt:         salt,
		},
	}
	s.byEmail[email] = rec
	s.order = append(s.order, email)

	s.metrics.IncPersonsRegistered()
	s.logger.InfoContext(ctx, "person registered", "person_id", id, "role", role)

	p := rec.person
	return &p, nil
}

// Authenticate verifies a person's credentials and returns the person if successful.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Person, error) {
	ctx, span := s.tracer.Start(ctx, "membership.authenticate")
	defer span.End()

	if !s.rateLimiter.Allow() {
		return nil, sentinel.ErrRateLimited
	}

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", sentinel.ErrValidation)
	}

	s.mu.RLock()
	rec, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		s.logger.DebugContext(ctx, "authentication failed: unknown email")
		return nil, fmt.Errorf("authentication failed: %w", sentinel.ErrUnauthorized)
	}

	if !VerifyCredential(rec.credential, password) {
		s.logger.DebugContext(ctx, "authentication failed: bad password", "person_id", rec.person.ID)
		return nil, fmt.Errorf("authentication failed: invalid credentials: %w", sentinel.ErrUnauthorized)
	}

	p := rec.person
	return &p, nil
}

// GetPerson retrieves a person by email.
func (s *service) GetPerson(ctx context.Context, email string) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("person %s: %w", email, sentinel.ErrNotFound)
	}
	p := rec.person
	return &p, nil
}

// ListDonors returns every donor in registration order.
func (s *service) ListDonors(ctx context.Context) ([]*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	donors := make([]*Person, 0)
	for _, email := range s.order {
		rec := s.byEmail[email]
		if rec.person.Role != RoleDonor {
			continue
		}
		p := rec.person
		donors = append(donors, &p)
	}
	return donors, nil
}
