// ABOUTME: End-to-end tests for the HTTP API over a real SQLite store
// ABOUTME: Covers signup/login, measurement CRUD, isolation, and password reset

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darzihq/darzi/internal/auth"
	"github.com/darzihq/darzi/internal/store"
)

// captureSender records reset codes instead of mailing them.
type captureSender struct {
	to   string
	code string
}

func (c *captureSender) SendResetCode(ctx context.Context, to, code string) error {
	c.to = to
	c.code = code
	return nil
}

type testServer struct {
	*httptest.Server
	sender *captureSender
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	sender := &captureSender{}
	verifier := auth.NewJWTVerifier([]byte("api-test-secret"))
	srv := NewServer(s, verifier, sender, time.Hour)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, sender: sender}
}

// do sends a JSON request, optionally with a bearer token, and decodes
// the JSON response body into out when out is non-nil.
func (ts *testServer) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// signup registers an account and returns its token.
func (ts *testServer) signup(t *testing.T, email string) string {
	t.Helper()

	var session SessionResponse
	status := ts.do(t, http.MethodPost, "/api/signup", "", SignupRequest{
		Email:       email,
		Password:    "correct horse battery",
		DisplayName: "Test Tailor",
	}, &session)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, session.Token)
	return session.Token
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]string
	status := ts.do(t, http.MethodGet, "/healthz", "", nil, &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestSignupAndLogin(t *testing.T) {
	ts := newTestServer(t)

	token := ts.signup(t, "tailor@example.com")
	require.NotEmpty(t, token)

	// Duplicate signup is rejected
	var errBody errorResponse
	status := ts.do(t, http.MethodPost, "/api/signup", "", SignupRequest{
		Email:       "tailor@example.com",
		Password:    "another password",
		DisplayName: "Imposter",
	}, &errBody)
	assert.Equal(t, http.StatusConflict, status)

	// Login with the right password
	var session SessionResponse
	status = ts.do(t, http.MethodPost, "/api/login", "", LoginRequest{
		Email:    "tailor@example.com",
		Password: "correct horse battery",
	}, &session)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "tailor@example.com", session.User.Email)

	// Wrong password and unknown email get the same reply
	status = ts.do(t, http.MethodPost, "/api/login", "", LoginRequest{
		Email:    "tailor@example.com",
		Password: "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status = ts.do(t, http.MethodPost, "/api/login", "", LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct horse battery",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSignup_Invalid(t *testing.T) {
	ts := newTestServer(t)

	status := ts.do(t, http.MethodPost, "/api/signup", "", SignupRequest{
		Email:    "not-an-email",
		Password: "correct horse battery",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = ts.do(t, http.MethodPost, "/api/signup", "", SignupRequest{
		Email:    "tailor@example.com",
		Password: "short",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMeasurements_RequireAuth(t *testing.T) {
	ts := newTestServer(t)

	status := ts.do(t, http.MethodGet, "/api/measurements", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status = ts.do(t, http.MethodPost, "/api/measurements", "", MeasurementRequest{}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMeasurementCRUD(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "tailor@example.com")

	// Create
	var created MeasurementResponse
	status := ts.do(t, http.MethodPost, "/api/measurements", token, MeasurementRequest{
		CustomerName: "Ali",
		PhoneNumber:  "0300-1111111",
		Fields:       []FieldPayload{{Key: "shirt", Value: "40", Required: true}},
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, int64(1), created.ID)
	assert.NotEmpty(t, created.CreatedAt)

	// List
	var list ListMeasurementsResponse
	status = ts.do(t, http.MethodGet, "/api/measurements", token, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Measurements, 1)
	assert.Equal(t, "Ali", list.Measurements[0].CustomerName)
	assert.Equal(t, []FieldPayload{{Key: "shirt", Value: "40", Required: true}}, list.Measurements[0].Fields)

	// Update
	var updated MeasurementResponse
	status = ts.do(t, http.MethodPut, "/api/measurements/1", token, MeasurementRequest{
		CustomerName: "Ali",
		PhoneNumber:  "0300-2222222",
		Fields:       []FieldPayload{{Key: "shirt", Value: "41", Required: true}},
	}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), updated.ID)
	assert.Equal(t, "0300-2222222", updated.PhoneNumber)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	// Get
	var got MeasurementResponse
	status = ts.do(t, http.MethodGet, "/api/measurements/1", token, nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0300-2222222", got.PhoneNumber)

	// Delete, twice: both succeed
	status = ts.do(t, http.MethodDelete, "/api/measurements/1", token, nil, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status = ts.do(t, http.MethodDelete, "/api/measurements/1", token, nil, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status = ts.do(t, http.MethodGet, "/api/measurements", token, nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, list.Measurements)
}

func TestDefaultFields(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "tailor@example.com")

	// A new record's form starts from the fixed required set
	var body map[string][]FieldPayload
	status := ts.do(t, http.MethodGet, "/api/measurements/fields", token, nil, &body)
	require.Equal(t, http.StatusOK, status)
	defaults := body["fields"]
	require.Len(t, defaults, len(store.DefaultFields()))
	for i, f := range store.DefaultFields() {
		assert.Equal(t, f.Key, defaults[i].Key)
		assert.True(t, defaults[i].Required)
	}

	// Creating without any fields is rejected
	status = ts.do(t, http.MethodPost, "/api/measurements", token, MeasurementRequest{
		CustomerName: "Ali",
		PhoneNumber:  "0300-1111111",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	// With values filled in for the defaults, creation succeeds and the
	// keys come back in order.
	fields := make([]FieldPayload, 0)
	for i, f := range defaults {
		f.Value = fmt.Sprintf("%d", 30+i)
		fields = append(fields, f)
	}
	var created MeasurementResponse
	status = ts.do(t, http.MethodPost, "/api/measurements", token, MeasurementRequest{
		CustomerName: "Ali",
		PhoneNumber:  "0300-1111111",
		Fields:       fields,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, created.Fields, len(fields))
	for i, f := range fields {
		assert.Equal(t, f.Key, created.Fields[i].Key)
	}
}

func TestMeasurementValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "tailor@example.com")

	status := ts.do(t, http.MethodPost, "/api/measurements", token, MeasurementRequest{
		PhoneNumber: "0300-1111111",
		Fields:      []FieldPayload{{Key: "shirt", Value: "40"}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "missing customer name")

	status = ts.do(t, http.MethodPost, "/api/measurements", token, MeasurementRequest{
		CustomerName: "Ali",
		Fields:       []FieldPayload{{Key: "shirt", Value: "40"}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "missing phone number")

	status = ts.do(t, http.MethodPost, "/api/measurements", token, MeasurementRequest{
		CustomerName: "Ali",
		PhoneNumber:  "0300-1111111",
		Fields:       []FieldPayload{{Key: "shirt", Required: true}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "blank required field")
}

func TestMeasurementUpdate_RejectsEmptyFields(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "tailor@example.com")

	var created MeasurementResponse
	status := ts.do(t, http.MethodPost, "/api/measurements", token, MeasurementRequest{
		CustomerName: "Ali",
		PhoneNumber:  "0300-1111111",
		Fields:       []FieldPayload{{Key: "shirt", Value: "40"}},
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	// A PUT must not wipe a record's fields when the same payload
	// would be refused on POST
	path := fmt.Sprintf("/api/measurements/%d", created.ID)
	status = ts.do(t, http.MethodPut, path, token, MeasurementRequest{
		CustomerName: "Ali",
		PhoneNumber:  "0300-1111111",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var got MeasurementResponse
	status = ts.do(t, http.MethodGet, path, token, nil, &got)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "shirt", got.Fields[0].Key)
}

func TestMeasurementIsolation(t *testing.T) {
	ts := newTestServer(t)
	tokenA := ts.signup(t, "a@example.com")
	tokenB := ts.signup(t, "b@example.com")

	var created MeasurementResponse
	status := ts.do(t, http.MethodPost, "/api/measurements", tokenA, MeasurementRequest{
		CustomerName: "Ali",
		PhoneNumber:  "0300-1111111",
		Fields:       []FieldPayload{{Key: "shirt", Value: "40"}},
	}, &created)
	require.Equal(t, http.StatusCreated, status)

	// B sees nothing
	var list ListMeasurementsResponse
	status = ts.do(t, http.MethodGet, "/api/measurements", tokenB, nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, list.Measurements)

	// B cannot read, update, or delete A's record
	path := fmt.Sprintf("/api/measurements/%d", created.ID)
	status = ts.do(t, http.MethodGet, path, tokenB, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = ts.do(t, http.MethodPut, path, tokenB, MeasurementRequest{
		CustomerName: "Hijacked",
		PhoneNumber:  "0",
	}, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = ts.do(t, http.MethodDelete, path, tokenB, nil, nil)
	assert.Equal(t, http.StatusNoContent, status) // idempotent no-op

	// A's record is untouched
	var got MeasurementResponse
	status = ts.do(t, http.MethodGet, path, tokenA, nil, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ali", got.CustomerName)
}

func TestMeasurementSearch(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "tailor@example.com")

	for _, r := range []struct{ name, phone string }{
		{"Ali Hassan", "0300-1111111"},
		{"Bilal Ahmed", "0321-5555555"},
	} {
		status := ts.do(t, http.MethodPost, "/api/measurements", token, MeasurementRequest{
			CustomerName: r.name,
			PhoneNumber:  r.phone,
			Fields:       []FieldPayload{{Key: "shirt", Value: "40"}},
		}, nil)
		require.Equal(t, http.StatusCreated, status)
	}

	var list ListMeasurementsResponse
	status := ts.do(t, http.MethodGet, "/api/measurements?q=ali", token, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Measurements, 1)
	assert.Equal(t, "Ali Hassan", list.Measurements[0].CustomerName)

	status = ts.do(t, http.MethodGet, "/api/measurements?q=0321", token, nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Measurements, 1)
	assert.Equal(t, "Bilal Ahmed", list.Measurements[0].CustomerName)
}

// sweepCountingStore counts expired-code sweeps on top of a real store.
type sweepCountingStore struct {
	store.Store
	sweeps atomic.Int32
}

func (s *sweepCountingStore) DeleteExpiredResetCodes(ctx context.Context) error {
	s.sweeps.Add(1)
	return s.Store.DeleteExpiredResetCodes(ctx)
}

func TestForgotPasswordSweepsExpiredCodes(t *testing.T) {
	real, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { real.Close() })

	counting := &sweepCountingStore{Store: real}
	verifier := auth.NewJWTVerifier([]byte("api-test-secret"))
	srv := NewServer(counting, verifier, &captureSender{}, time.Hour)
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	// A pending code already past its expiry
	now := time.Now().UTC()
	require.NoError(t, real.CreateResetCode(context.Background(), &store.ResetCode{
		ID:        "stale-code",
		Email:     "stale@example.com",
		CodeHash:  auth.HashResetCode("123456"),
		Status:    store.ResetCodeStatusPending,
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(-50 * time.Minute),
	}))

	body, err := json.Marshal(ForgotPasswordRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/api/password/forgot", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// The handler ran the sweep, and the stale code is unusable
	assert.Equal(t, int32(1), counting.sweeps.Load())
	err = real.ConsumeResetCode(context.Background(), "stale@example.com", auth.HashResetCode("123456"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestForgotPasswordThrottled(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "tailor@example.com")

	status := ts.do(t, http.MethodPost, "/api/password/forgot", "", ForgotPasswordRequest{
		Email: "tailor@example.com",
	}, nil)
	require.Equal(t, http.StatusAccepted, status)
	first := ts.sender.code
	require.Len(t, first, 6)

	// A second request inside the window still replies 202 but sends
	// no new code.
	ts.sender.code = ""
	status = ts.do(t, http.MethodPost, "/api/password/forgot", "", ForgotPasswordRequest{
		Email: "tailor@example.com",
	}, nil)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Empty(t, ts.sender.code)

	// The first code still works
	status = ts.do(t, http.MethodPost, "/api/password/reset", "", ResetPasswordRequest{
		Email:       "tailor@example.com",
		Code:        first,
		NewPassword: "a new password",
	}, nil)
	require.Equal(t, http.StatusNoContent, status)
}

func TestPasswordResetFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "tailor@example.com")

	// Request a code
	status := ts.do(t, http.MethodPost, "/api/password/forgot", "", ForgotPasswordRequest{
		Email: "tailor@example.com",
	}, nil)
	require.Equal(t, http.StatusAccepted, status)
	require.Equal(t, "tailor@example.com", ts.sender.to)
	require.Len(t, ts.sender.code, 6)

	// Unknown emails get the same reply and no mail
	before := ts.sender.code
	status = ts.do(t, http.MethodPost, "/api/password/forgot", "", ForgotPasswordRequest{
		Email: "nobody@example.com",
	}, nil)
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, before, ts.sender.code)

	// Wrong code is rejected
	status = ts.do(t, http.MethodPost, "/api/password/reset", "", ResetPasswordRequest{
		Email:       "tailor@example.com",
		Code:        "000000",
		NewPassword: "a new password",
	}, nil)
	if ts.sender.code == "000000" {
		t.Skip("generated code collided with the wrong-code probe")
	}
	assert.Equal(t, http.StatusUnauthorized, status)

	// Right code resets the password
	status = ts.do(t, http.MethodPost, "/api/password/reset", "", ResetPasswordRequest{
		Email:       "tailor@example.com",
		Code:        ts.sender.code,
		NewPassword: "a new password",
	}, nil)
	require.Equal(t, http.StatusNoContent, status)

	// The code is single use
	status = ts.do(t, http.MethodPost, "/api/password/reset", "", ResetPasswordRequest{
		Email:       "tailor@example.com",
		Code:        ts.sender.code,
		NewPassword: "yet another password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Old password no longer works, new one does
	status = ts.do(t, http.MethodPost, "/api/login", "", LoginRequest{
		Email:    "tailor@example.com",
		Password: "correct horse battery",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status = ts.do(t, http.MethodPost, "/api/login", "", LoginRequest{
		Email:    "tailor@example.com",
		Password: "a new password",
	}, nil)
	assert.Equal(t, http.StatusOK, status)
}
