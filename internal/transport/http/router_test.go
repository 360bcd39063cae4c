package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authhandler "clinic/internal/auth/handler"
	authservice "clinic/internal/auth/service"
	"clinic/internal/auth/store/user"
	jwttoken "clinic/internal/jwt_token"
	"clinic/internal/platform/metrics"
	"clinic/internal/record/cache"
	"clinic/internal/record/events"
	recordhandler "clinic/internal/record/handler"
	"clinic/internal/record/sequence"
	recordservice "clinic/internal/record/service"
	"clinic/internal/record/store"
	request "clinic/pkg/platform/middleware/request"
	"clinic/pkg/testutil"
)

func newTestRouter(t *testing.T, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	jwt := jwttoken.NewJWTService("router-test-key", "clinic")

	auth := authservice.New(user.New(), jwt, 5*time.Minute,
		authservice.WithLogger(logger),
		authservice.WithMetrics(m),
		authservice.WithBcryptCost(bcrypt.MinCost),
	)
	records := recordservice.New(sequence.NewMemory(), store.NewInMemory(), cache.NewMemory(), events.NewMemoryBus(),
		recordservice.WithLogger(logger),
	)

	return NewRouter(Deps{
		Logger:         logger,
		Metrics:        m,
		Gatherer:       reg,
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		Auth:           authhandler.New(auth, logger),
		Records:        recordhandler.New(records, logger),
		RequestTimeout: 5 * time.Second,
		HealthChecks:   checks,
	})
}

func login(t *testing.T, router http.Handler, username, password string) string {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/register",
		map[string]string{"username": username, "password": password}))
	testutil.AssertStatusOK(t, rr)

	rr = testutil.DoRequest(router, testutil.NewFormRequest(t, "/token",
		url.Values{"username": {username}, "password": {password}}))
	testutil.AssertStatusOK(t, rr)
	tok := testutil.UnmarshalResponse[struct {
		AccessToken string `json:"access_token"`
	}](t, rr)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func TestRouter_IntakeFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	testutil.Given(t, "a registered clinician", func(t *testing.T) {
		token := login(t, router, "nurse-1", "correct horse")

		testutil.When(t, "an intake is evaluated", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/evaluate", map[string]any{
				"age": 30, "height": 1.8, "weight": 75, "recent_surgery": true, "chronic_pain": false,
			})
			rr := testutil.DoRequest(router, testutil.BearerRequest(req, token))
			testutil.AssertStatus(t, rr, http.StatusCreated)
			assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))

			testutil.Then(t, "its recommendation is readable", func(t *testing.T) {
				req := testutil.NewRequest(t, http.MethodGet, "/recommendation/1")
				rr := testutil.DoRequest(router, testutil.BearerRequest(req, token))
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "recommendation", "Post-Op Rehabilitation Plan")
			})

			testutil.Then(t, "it appears in the patient list", func(t *testing.T) {
				req := testutil.NewRequest(t, http.MethodGet, "/patients")
				rr := testutil.DoRequest(router, testutil.BearerRequest(req, token))
				testutil.AssertStatusOK(t, rr)
				assert.Contains(t, rr.Body.String(), `"patient_id":1`)
			})
		})
	})

	testutil.Given(t, "no credential", func(t *testing.T) {
		testutil.Then(t, "record routes are rejected", func(t *testing.T) {
			for _, path := range []string{"/recommendation/1", "/patients"} {
				rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			}
		})
	})
}

func TestRouter_Operational(t *testing.T) {
	testutil.Given(t, "healthy dependencies", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "ok")
	})

	testutil.Given(t, "an unreachable dependency", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})

	testutil.Given(t, "served traffic", func(t *testing.T) {
		router := newTestRouter(t, nil)
		testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(t, rr)
		body := rr.Body.String()
		assert.True(t, strings.Contains(body, `clinic_http_request_duration_seconds_count{method="GET",route="/healthz",status="200"}`), body)
	})
}
