package errors_test

import (
	"encoding/json"
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/go-graph-signin/internal/errors"
	"github.com/stretchr/testify/require"
)

type objectError struct {
	Code    string `json:"errorCode"`
	Details string `json:"errorMessage"`
}

func (e *objectError) Error() string {
	return e.Code + ": " + e.Details
}

func TestNormalize_StringWithDelimiter(t *testing.T) {
	n := apperrors.Normalize(apperrors.StringError("AADSTS1|Consent required"))

	require.Equal(t, "Consent required", n.Message)
	require.NotNil(t, n.Debug)
	require.Equal(t, "AADSTS1", *n.Debug)
}

func TestNormalize_StringSplitsOnFirstDelimiterOnly(t *testing.T) {
	n := apperrors.Normalize(apperrors.StringError("code|first|second"))

	require.Equal(t, "first|second", n.Message)
	require.Equal(t, "code", *n.Debug)
}

func TestNormalize_StringWithoutDelimiter(t *testing.T) {
	for _, s := range []string{"plain failure", "", "user_cancelled"} {
		t.Run(s, func(t *testing.T) {
			n := apperrors.Normalize(apperrors.StringError(s))
			require.Equal(t, s, n.Message)
			require.Nil(t, n.Debug)
		})
	}
}

func TestNormalize_NewStringError(t *testing.T) {
	n := apperrors.Normalize(apperrors.NewStringError("access_denied", "The user denied consent"))

	require.Equal(t, "The user denied consent", n.Message)
	require.Equal(t, "access_denied", *n.Debug)
}

func TestNormalize_Object(t *testing.T) {
	err := &objectError{Code: "network_error", Details: "connection reset"}

	n := apperrors.Normalize(err)

	expected, jerr := json.Marshal(err)
	require.NoError(t, jerr)
	require.Equal(t, err.Error(), n.Message)
	require.NotNil(t, n.Debug)
	require.JSONEq(t, string(expected), *n.Debug)
}

func TestNormalize_OpaqueObject(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", apperrors.ErrCacheMiss)

	n := apperrors.Normalize(err)

	require.Equal(t, "wrapped: cache miss", n.Message)
	require.NotNil(t, n.Debug)
	require.Contains(t, *n.Debug, `"message":"wrapped: cache miss"`)
	require.Contains(t, *n.Debug, `"type":"*fmt.wrapError"`)
}

func TestNormalize_Nil(t *testing.T) {
	require.Equal(t, apperrors.NormalizedError{}, apperrors.Normalize(nil))
}
