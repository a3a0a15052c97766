package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dogsitter/internal/config"
	"dogsitter/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		token   string
		present bool
	}{
		{name: "absent", header: "", token: "", present: false},
		{name: "bearer", header: "Bearer abc.def", token: "abc.def", present: true},
		{name: "case insensitive", header: "bearer xyz", token: "xyz", present: true},
		{name: "wrong scheme", header: "Basic dXNlcg==", token: "", present: true},
		{name: "no token", header: "Bearer", token: "", present: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			token, present := bearerToken(r)
			assert.Equal(t, tt.token, token)
			assert.Equal(t, tt.present, present)
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	h := requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(requestIDHeader, "req-42")
	h.ServeHTTP(rec, r)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(requestIDHeader))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := rateLimit(newRateLimiter(config.APIRateLimitConfig{RPS: 0.001, Burst: 1}))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.9:5555"
	third := httptest.NewRecorder()
	h.ServeHTTP(third, other)
	assert.Equal(t, http.StatusNoContent, third.Code)
}

func TestRespondErrorStatuses(t *testing.T) {
	logger := zerolog.Nop()
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{err: fmt.Errorf("%w: bad date", domain.ErrValidation), code: http.StatusBadRequest},
		{err: domain.ErrInvalidStatusTransition, code: http.StatusBadRequest},
		{err: domain.ErrInvalidCredentials, code: http.StatusUnauthorized},
		{err: domain.ErrForbidden, code: http.StatusForbidden},
		{err: fmt.Errorf("booking 7: %w", domain.ErrNotFound), code: http.StatusNotFound},
		{err: domain.ErrConcurrentModification, code: http.StatusConflict},
		{err: domain.ErrSitterUnavailable, code: http.StatusConflict},
		{err: domain.ErrAlreadyReviewed, code: http.StatusConflict},
		{err: domain.ErrRateLimited, code: http.StatusTooManyRequests},
		{err: fmt.Errorf("disk on fire"), code: http.StatusInternalServerError, msg: "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), &logger, tt.err)
			require.Equal(t, tt.code, rec.Code)
			want := tt.msg
			if want == "" {
				want = tt.err.Error()
			}
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, want), rec.Body.String())
		})
	}
}

func TestVersionFromQueryOrBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/?version=3", nil)
	v, err := version(r)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"version":5}`))
	v, err = version(r)
	require.NoError(t, err)
	assert.EqualValues(t, 5, v)

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	v, err = version(r)
	require.NoError(t, err)
	assert.Zero(t, v)

	r = httptest.NewRequest(http.MethodPost, "/?version=abc", nil)
	_, err = version(r)
	assert.ErrorIs(t, err, errBadRequest)
}
