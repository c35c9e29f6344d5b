package http

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "pharmapulse/internal/errors"
)

func TestBindQuery(t *testing.T) {
	values := url.Values{
		"region":    {" SOFIA "},
		"ref":       {"Q2 2024"},
		"base":      {"Q1 2024"},
		"entity":    {"AERIUS", " ", "ZYRTEC "},
		"top":       {"5"},
		"direction": {"drop"},
		"unknown":   {"ignored"},
	}

	var q leaderboardQuery
	require.NoError(t, bindQuery(values, &q))

	assert.Equal(t, "SOFIA", q.Region)
	assert.Equal(t, "Q2 2024", q.Ref)
	assert.Equal(t, "Q1 2024", q.Base)
	assert.Equal(t, []string{"AERIUS", "ZYRTEC"}, q.Entities)
	assert.Equal(t, 5, q.TopN)
	assert.Equal(t, "drop", q.Direction)
}

func TestBindQueryBlankValuesKeepZero(t *testing.T) {
	var q factsQuery
	require.NoError(t, bindQuery(url.Values{"limit": {""}, "period": {"  "}}, &q))

	assert.Zero(t, q.Limit)
	assert.Empty(t, q.Period)
}

func TestBindQueryRejectsNonNumeric(t *testing.T) {
	var q factsQuery
	err := bindQuery(url.Values{"limit": {"ten"}}, &q)
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, apierrors.CodeValidation, apiErr.ErrorCode)

	details, ok := apiErr.Details.(apierrors.ValidationErrors)
	require.True(t, ok)
	require.Len(t, details.Errors, 1)
	assert.Equal(t, "limit", details.Errors[0].Field)
}
