package donors

import (
	"context"
	"testing"

	"bloodlink/internal/membership"
	"bloodlink/internal/requests"
	"bloodlink/pkg/eventstore"
	"bloodlink/pkg/platform/sentinel"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fixture struct {
	members  membership.Service
	requests requests.Service
	svc      Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	journal := eventstore.NewMemoryStore()
	members := membership.NewService(journal, membership.WithRateLimiter(rate.NewLimiter(rate.Inf, 0)))
	reqs := requests.NewService(journal)
	return &fixture{members: members, requests: reqs, svc: NewService(members, reqs)}
}

func (f *fixture) register(t *testing.T, email, role, bg string) *membership.Person {
	t.Helper()
	p, err := f.members.RegisterPerson(context.Background(), membership.RegisterInput{
		Name: email, Email: email, Password: "pw", Role: role, BloodGroup: bg,
	})
	require.NoError(t, err)
	return p
}

func emails(persons []*membership.Person) []string {
	out := make([]string, 0, len(persons))
	for _, p := range persons {
		out = append(out, p.Email)
	}
	return out
}

func TestListDonors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a-pos@test.com", "donor", "A+")
	f.register(t, "o-neg@test.com", "donor", "O-")
	f.register(t, "req@test.com", "requestor", "")
	f.register(t, "ab-pos@test.com", "donor", "AB+")

	all, err := f.svc.ListDonors(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-pos@test.com", "o-neg@test.com", "ab-pos@test.com"}, emails(all))

	forAPos, err := f.svc.ListDonors(ctx, "a+")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-pos@test.com", "o-neg@test.com"}, emails(forAPos))

	forONeg, err := f.svc.ListDonors(ctx, "O-")
	require.NoError(t, err)
	assert.Equal(t, []string{"o-neg@test.com"}, emails(forONeg))

	_, err = f.svc.ListDonors(ctx, "Z+")
	assert.ErrorIs(t, err, sentinel.ErrValidation)
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.register(t, "donor@test.com", "donor", "B-")
	r := f.register(t, "req@test.com", "requestor", "")

	taken, err := f.requests.CreateRequest(ctx, r, "AB-", 1)
	require.NoError(t, err)
	open, err := f.requests.CreateRequest(ctx, r, "B+", 1)
	require.NoError(t, err)
	_, err = f.requests.CreateRequest(ctx, r, "A-", 1)
	require.NoError(t, err)

	_, err = f.requests.AcceptRequest(ctx, d, taken.ID)
	require.NoError(t, err)

	profile, err := f.svc.GetProfile(ctx, "DONOR@test.com")
	require.NoError(t, err)
	assert.Equal(t, "donor@test.com", profile.Donor.Email)
	require.Len(t, profile.Donations, 1)
	assert.Equal(t, taken.ID, profile.Donations[0].RequestID)
	require.Len(t, profile.CompatibleRequests, 1)
	assert.Equal(t, open.ID, profile.CompatibleRequests[0].ID)
}

func TestGetProfileListsConfirmedCompatibleRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.register(t, "o-neg@test.com", "donor", "O-")
	r := f.register(t, "req@test.com", "requestor", "")

	req, err := f.requests.CreateRequest(ctx, r, "A+", 1)
	require.NoError(t, err)
	_, err = f.requests.AcceptRequest(ctx, d, req.ID)
	require.NoError(t, err)
	_, err = f.requests.ConfirmRequest(ctx, r, req.ID)
	require.NoError(t, err)

	active, err := f.requests.ListActiveRequests(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	profile, err := f.svc.GetProfile(ctx, "o-neg@test.com")
	require.NoError(t, err)
	require.Len(t, profile.CompatibleRequests, 1)
	assert.Equal(t, req.ID, profile.CompatibleRequests[0].ID)
	assert.Equal(t, requests.StatusConfirmed, profile.CompatibleRequests[0].Status)
}

func TestGetProfileOfRequestorIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.register(t, "req@test.com", "requestor", "")

	_, err := f.svc.GetProfile(context.Background(), "req@test.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = f.svc.GetProfile(context.Background(), "ghost@test.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCompatibleDonorsForRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a-pos@test.com", "donor", "A+")
	f.register(t, "b-neg@test.com", "donor", "B-")
	f.register(t, "o-neg@test.com", "donor", "O-")
	r := f.register(t, "req@test.com", "requestor", "")

	req, err := f.requests.CreateRequest(ctx, r, "AB-", 2)
	require.NoError(t, err)

	matches, err := f.svc.CompatibleDonorsForRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-neg@test.com", "o-neg@test.com"}, emails(matches))

	_, err = f.svc.CompatibleDonorsForRequest(ctx, uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
