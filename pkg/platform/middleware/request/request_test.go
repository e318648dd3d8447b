package request

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propshare/pkg/requestcontext"
)

func TestMiddleware(t *testing.T) {
	var gotID string
	var gotTime time.Time
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		gotTime = requestcontext.Now(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		_, err := uuid.Parse(gotID)
		require.NoError(t, err)
		assert.Equal(t, gotID, w.Header().Get(HeaderRequestID))
		assert.WithinDuration(t, time.Now(), gotTime, time.Second)
	})

	t.Run("keeps a well-formed incoming id", func(t *testing.T) {
		incoming := uuid.NewString()
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.Header.Set(HeaderRequestID, incoming)
		h.ServeHTTP(httptest.NewRecorder(), r)
		assert.Equal(t, incoming, gotID)
	})

	t.Run("replaces a malformed incoming id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.Header.Set(HeaderRequestID, "<script>")
		h.ServeHTTP(httptest.NewRecorder(), r)
		assert.NotEqual(t, "<script>", gotID)
		_, err := uuid.Parse(gotID)
		assert.NoError(t, err)
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Middleware(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/properties", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "/properties", line["path"])
	assert.InDelta(t, http.StatusTeapot, line["status"], 0)
	assert.NotEmpty(t, line["request_id"])
}
