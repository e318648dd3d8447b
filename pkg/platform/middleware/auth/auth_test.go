package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propshare/pkg/domain"
	"propshare/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

func TestRequireCaller(t *testing.T) {
	caller := domain.MustParseAddress("0x00000000000000000000000000000000000000a2")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen domain.Address
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Caller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name      string
		header    string
		validator stubValidator
		status    int
	}{
		{"missing header", "", stubValidator{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized},
		{"invalid token", "Bearer abc", stubValidator{err: errors.New("signature is invalid")}, http.StatusUnauthorized},
		{"zero caller", "Bearer abc", stubValidator{claims: &JWTClaims{}}, http.StatusUnauthorized},
		{"valid", "Bearer abc", stubValidator{claims: &JWTClaims{Caller: caller, JTI: "j1"}}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.Address{}
			r := httptest.NewRequest(http.MethodPost, "/properties", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			RequireCaller(tt.validator, logger)(next).ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, caller, seen)
			} else {
				assert.True(t, seen.IsZero())
				var body map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "unauthorized", body["error"])
				assert.NotEmpty(t, body["error_description"])
			}
		})
	}
}
