package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "pharmapulse/internal/errors"
)

type periodQuery struct {
	Ref  string `query:"ref" validate:"omitempty,period"`
	Base string `query:"base" validate:"omitempty,period"`
	TopN int    `query:"top_n" validate:"gte=0,lte=500"`
}

func TestValidateStructPeriods(t *testing.T) {
	vm := NewValidationMiddleware(nil, apierrors.NewErrorHandler(nil, false))

	assert.NoError(t, vm.ValidateStruct(periodQuery{}))
	assert.NoError(t, vm.ValidateStruct(periodQuery{Ref: "Q2 2024", Base: "Q1 2024", TopN: 5}))
	assert.NoError(t, vm.ValidateStruct(periodQuery{Ref: "Feb 2024", Base: "Jan 2024"}))

	err := vm.ValidateStruct(periodQuery{Ref: "Week 3", Base: "Q1 2024", TopN: 1000})
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	details := apiErr.Details.(apierrors.ValidationErrors)
	require.Len(t, details.Errors, 2)
	assert.Equal(t, "ref", details.Errors[0].Field)
	assert.Contains(t, details.Errors[0].Message, "quarter")
	assert.Equal(t, "top_n", details.Errors[1].Field)
}

func TestJSONBody(t *testing.T) {
	vm := NewValidationMiddleware(nil, apierrors.NewErrorHandler(nil, false))

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
		wantCalled  bool
	}{
		{name: "valid json", method: http.MethodPost, contentType: "application/json", body: `{"force":true}`, wantStatus: http.StatusOK, wantCalled: true},
		{name: "charset param", method: http.MethodPost, contentType: "application/json; charset=utf-8", body: `{}`, wantStatus: http.StatusOK, wantCalled: true},
		{name: "empty body", method: http.MethodPost, wantStatus: http.StatusOK, wantCalled: true},
		{name: "malformed", method: http.MethodPost, contentType: "application/json", body: "{bad", wantStatus: http.StatusBadRequest},
		{name: "wrong media type", method: http.MethodPost, contentType: "text/plain", body: `{}`, wantStatus: http.StatusUnsupportedMediaType},
		{name: "too large", method: http.MethodPost, body: `"` + strings.Repeat("x", DefaultMaxBodySize) + `"`, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "get ignored", method: http.MethodGet, body: "{bad", wantStatus: http.StatusOK, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := vm.JSONBody(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

			r := httptest.NewRequest(tt.method, "/api/ingest/rebuild", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}
