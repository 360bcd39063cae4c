package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "clinic/internal/jwt_token"
	"clinic/internal/record/cache"
	"clinic/internal/record/events"
	"clinic/internal/record/models"
	"clinic/internal/record/sequence"
	"clinic/internal/record/service"
	"clinic/internal/record/store"
	"clinic/pkg/platform/middleware/auth"
	"clinic/pkg/testutil"
)

type countingAllocator struct {
	inner *sequence.Memory
	calls atomic.Int64
}

func (c *countingAllocator) Next(ctx context.Context, name string) (int64, error) {
	c.calls.Add(1)
	return c.inner.Next(ctx, name)
}

type fixture struct {
	router    chi.Router
	allocator *countingAllocator
	records   *store.InMemory
	token     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := jwttoken.NewJWTService("test-key", "clinic")
	token, err := jwt.GenerateAccessToken("nurse-1", time.Minute)
	require.NoError(t, err)

	f := &fixture{
		allocator: &countingAllocator{inner: sequence.NewMemory()},
		records:   store.NewInMemory(),
		token:     token,
	}
	svc := service.New(f.allocator, f.records, cache.NewMemory(), events.NewMemoryBus(),
		service.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(jwttoken.NewJWTServiceAdapter(jwt), logger))
		New(svc, logger).Register(r)
	})
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(f.router, testutil.BearerRequest(req, f.token))
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n := 0
	for _, err := range f.records.ListAll(context.Background()) {
		require.NoError(t, err)
		n++
	}
	return n
}

func evaluateBody(age int, height, weight float64, surgery, pain bool) map[string]any {
	return map[string]any{
		"age":            age,
		"height":         height,
		"weight":         weight,
		"recent_surgery": surgery,
		"chronic_pain":   pain,
	}
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/evaluate", evaluateBody(70, 1.75, 80, false, true)))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	rec := testutil.UnmarshalResponse[models.PatientRecord](t, rr)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, 26.12, rec.BMI)
	require.NotNil(t, rec.Recommendation)
	assert.Equal(t, "Physical Therapy", *rec.Recommendation)
}

func TestEvaluate_NoRecommendationIsNull(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/evaluate", evaluateBody(30, 1.8, 70, false, false)))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	assert.Contains(t, rr.Body.String(), `"recommendation":null`)
}

func TestEvaluate_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "malformed json", body: `{"age":`, code: "bad_request"},
		{name: "missing field", body: `{"age":30,"height":1.8,"weight":70,"recent_surgery":false}`, code: "validation_error"},
		{name: "zero age", body: `{"age":0,"height":1.8,"weight":70,"recent_surgery":false,"chronic_pain":false}`, code: "validation_error"},
		{name: "negative height", body: `{"age":30,"height":-1,"weight":70,"recent_surgery":false,"chronic_pain":false}`, code: "validation_error"},
		{name: "zero weight", body: `{"age":30,"height":1.8,"weight":0,"recent_surgery":false,"chronic_pain":false}`, code: "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rr := f.do(t, testutil.NewRequestWithBody(t, http.MethodPost, "/evaluate", tt.body))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, tt.code)
			assert.Zero(t, f.allocator.calls.Load())
			assert.Zero(t, f.count(t))
		})
	}
}

func TestUnauthenticatedRequestsHaveNoEffect(t *testing.T) {
	f := newFixture(t)

	for _, token := range []string{"", "garbage"} {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/evaluate", evaluateBody(70, 1.75, 80, false, true))
		if token != "" {
			req = testutil.BearerRequest(req, token)
		}
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	}

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/recommendation/1"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)

	assert.Zero(t, f.allocator.calls.Load())
	assert.Zero(t, f.count(t))
}

func TestRecommendation(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/evaluate", evaluateBody(40, 1.6, 90, true, false)))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	first := f.do(t, testutil.NewRequest(t, http.MethodGet, "/recommendation/1"))
	testutil.AssertStatusOK(t, first)
	second := f.do(t, testutil.NewRequest(t, http.MethodGet, "/recommendation/1"))
	testutil.AssertStatusOK(t, second)
	assert.JSONEq(t, `{"patient_id":1,"recommendation":"Weight Management Program"}`, first.Body.String())
	assert.Equal(t, first.Body.String(), second.Body.String())

	rr = f.do(t, testutil.NewRequest(t, http.MethodGet, "/recommendation/99"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	for _, id := range []string{"abc", "0", "-3", "1.5"} {
		rr = f.do(t, testutil.NewRequest(t, http.MethodGet, "/recommendation/"+id))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	}
}

func TestListPatients(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, testutil.NewRequest(t, http.MethodGet, "/patients"))
	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	for _, age := range []int{20, 30} {
		rr = f.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/evaluate", evaluateBody(age, 1.7, 60, false, false)))
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}

	rr = f.do(t, testutil.NewRequest(t, http.MethodGet, "/patients"))
	testutil.AssertStatusOK(t, rr)
	list := testutil.UnmarshalResponse[[]models.PatientRecord](t, rr)
	require.Len(t, *list, 2)
	assert.Equal(t, 20, (*list)[0].Age)
	assert.Equal(t, 30, (*list)[1].Age)
}
