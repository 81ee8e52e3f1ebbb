package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bloodlink/internal/clients"
	"bloodlink/internal/compatibility"
	"bloodlink/internal/donors"
	"bloodlink/internal/membership"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/requests"
	"bloodlink/pkg/eventstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestServer(t *testing.T) (*httptest.Server, *clients.Client) {
	t.Helper()

	journal := eventstore.NewMemoryStore()
	m := metrics.New()
	members := membership.NewService(journal,
		membership.WithRateLimiter(rate.NewLimiter(rate.Inf, 0)),
		membership.WithMetrics(m),
	)
	reqs := requests.NewService(journal, requests.WithMetrics(m))

	srv := httptest.NewServer(New(Options{
		Metrics:    m,
		Tokens:     membership.NewTokenIssuer("test-key", "bloodlink", time.Hour),
		Membership: members,
		Requests:   reqs,
		Donors:     donors.NewService(members, reqs),
	}))
	t.Cleanup(srv.Close)

	return srv, clients.New(srv.URL, srv.Client())
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var apiErr *clients.APIError
	require.True(t, errors.As(err, &apiErr), "expected an API error, got %v", err)
	return apiErr.StatusCode
}

func signUp(t *testing.T, c *clients.Client, name, email, role, bg string) *clients.Client {
	t.Helper()
	ctx := context.Background()
	_, err := c.Register(ctx, membership.RegisterInput{
		Name: name, Email: email, Password: "SecurePass123!", Role: role, BloodGroup: bg,
	})
	require.NoError(t, err)

	session, err := c.Login(ctx, email, "SecurePass123!", role)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	return c.WithToken(session.Token)
}

func TestDonationFlow(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	rita := signUp(t, c, "Rita", "rita@example.com", "requestor", "")
	aPos := signUp(t, c, "Al", "al@example.com", "donor", "A+")
	bNeg := signUp(t, c, "Bea", "bea@example.com", "donor", "B-")

	req, err := rita.CreateRequest(ctx, "AB-", 2)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusRequested, req.Status)
	assert.Equal(t, "Rita", req.RequestorName)

	matches, err := rita.RequestDonors(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "bea@example.com", matches[0].Email)

	_, err = aPos.AcceptRequest(ctx, req.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))

	accepted, err := bNeg.AcceptRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusAccepted, accepted.Status)
	assert.Equal(t, "Bea", accepted.DonorName)

	active, err := rita.ActiveRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = bNeg.ConfirmRequest(ctx, req.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	confirmed, err := rita.ConfirmRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, requests.StatusConfirmed, confirmed.Status)

	active, err = rita.ActiveRequests(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, req.ID, active[0].ID)

	donations, err := bNeg.MyDonations(ctx)
	require.NoError(t, err)
	require.Len(t, donations, 1)
	assert.Equal(t, req.ID, donations[0].RequestID)

	mine, err := rita.MyRequests(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	history, err := rita.RequestHistory(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "RequestConfirmed", history[2].EventType)

	profile, err := rita.DonorProfile(ctx, "bea@example.com")
	require.NoError(t, err)
	assert.Len(t, profile.Donations, 1)
	require.Len(t, profile.CompatibleRequests, 1)
	assert.Equal(t, req.ID, profile.CompatibleRequests[0].ID)
	assert.Equal(t, requests.StatusConfirmed, profile.CompatibleRequests[0].Status)
}

func TestLifecycleErrorsMapToStatusCodes(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	rita := signUp(t, c, "Rita", "rita@example.com", "requestor", "")
	donor := signUp(t, c, "Don", "don@example.com", "donor", "O-")

	req, err := rita.CreateRequest(ctx, "O+", 1)
	require.NoError(t, err)

	_, err = donor.CreateRequest(ctx, "O+", 1)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = rita.CreateRequest(ctx, "Q+", 1)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = rita.CreateRequest(ctx, "O+", 0)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = rita.ConfirmRequest(ctx, req.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	_, err = rita.AcceptRequest(ctx, req.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = donor.AcceptRequest(ctx, req.ID)
	require.NoError(t, err)

	_, err = donor.AcceptRequest(ctx, req.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestUnitsAcceptTextualNumbers(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()
	_, err := c.Register(ctx, membership.RegisterInput{
		Name: "Rita", Email: "rita@example.com", Password: "SecurePass123!", Role: "requestor",
	})
	require.NoError(t, err)
	session, err := c.Login(ctx, "rita@example.com", "SecurePass123!", "")
	require.NoError(t, err)

	post := func(body string) int {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/requests", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusCreated, post(`{"blood_group":"A+","units":"3"}`))
	assert.Equal(t, http.StatusCreated, post(`{"blood_group":"a+","units":4}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"blood_group":"A+","units":"many"}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"blood_group":"A+"}`))
	assert.Equal(t, http.StatusBadRequest, post(`not json`))
}

func TestCreateRequestChecksRoleThenGroupThenUnits(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	login := func(name, email, role, bg string) string {
		_, err := c.Register(ctx, membership.RegisterInput{
			Name: name, Email: email, Password: "SecurePass123!", Role: role, BloodGroup: bg,
		})
		require.NoError(t, err)
		session, err := c.Login(ctx, email, "SecurePass123!", "")
		require.NoError(t, err)
		return session.Token
	}
	donorToken := login("Don", "don@example.com", "donor", "O-")
	ritaToken := login("Rita", "rita@example.com", "requestor", "")

	post := func(token, body string) (int, string) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/requests", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out.Error
	}

	status, _ := post(donorToken, `{"blood_group":"A+","units":"many"}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = post(donorToken, `{"blood_group":"A+"}`)
	assert.Equal(t, http.StatusForbidden, status)

	status, msg := post(ritaToken, `{"blood_group":"Q+","units":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "invalid blood group")

	status, msg = post(ritaToken, `{"blood_group":"Q+","units":"many"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "invalid blood group")

	status, msg = post(ritaToken, `{"blood_group":"A+","units":"many"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, msg, "units")
}

func TestAuthentication(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	_, err := c.Me(ctx)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = c.WithToken("garbage").Me(ctx)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	donor := signUp(t, c, "Don", "don@example.com", "donor", "o+")
	me, err := donor.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, compatibility.OPositive, me.BloodGroup)

	_, err = c.Login(ctx, "don@example.com", "SecurePass123!", "requestor")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	_, err = c.Login(ctx, "don@example.com", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	_, err = c.Register(ctx, membership.RegisterInput{
		Name: "Dup", Email: "DON@example.com", Password: "pw", Role: "requestor",
	})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))
}

func TestPublicCompatibilityEndpoints(t *testing.T) {
	srv, c := newTestServer(t)
	ctx := context.Background()

	groups, err := c.BloodGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, compatibility.ValidBloodGroups(), groups)

	got, err := c.Compatibility(ctx, "ab-")
	require.NoError(t, err)
	assert.Equal(t, "AB-", got.BloodGroup)
	assert.Equal(t, compatibility.CompatibleDonors("AB-"), got.CompatibleDonors)
	assert.Equal(t, "Blood Group AB- can receive from: A-, B-, O-, AB-", got.Explanation)

	unknown, err := c.Compatibility(ctx, "XY")
	require.NoError(t, err)
	assert.Empty(t, unknown.CompatibleDonors)
	assert.Equal(t, "Invalid blood group: XY", unknown.Explanation)

	_, err = c.Compatibility(ctx, "")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	stats, err := c.CompatibilityStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, compatibility.ONegative, stats.UniversalDonor)
	assert.Equal(t, compatibility.ABPositive, stats.UniversalRecipient)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDonorDirectory(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	rita := signUp(t, c, "Rita", "rita@example.com", "requestor", "")
	signUp(t, c, "Al", "al@example.com", "donor", "A+")
	signUp(t, c, "Oz", "oz@example.com", "donor", "O-")

	all, err := rita.Donors(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forONeg, err := rita.Donors(ctx, "O-")
	require.NoError(t, err)
	require.Len(t, forONeg, 1)
	assert.Equal(t, "oz@example.com", forONeg[0].Email)

	_, err = rita.Donors(ctx, "nope")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = rita.DonorProfile(ctx, "rita@example.com")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}
