package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/govpipe/config"
	"github.com/teranos/govpipe/entity"
	"github.com/teranos/govpipe/errors"
	"github.com/teranos/govpipe/internal/httpclient"
	"github.com/teranos/govpipe/logger"
)

func newClient(srv *httptest.Server, opts Options) *Client {
	env := config.Environment{Name: "test", BaseURL: srv.URL, AllowPrivate: true}
	cfg := &config.Config{API: config.APIConfig{Token: "tok"}}
	return New(httpclient.ForEnvironment(cfg, env), env, opts, nil)
}

func incident(ref string) *entity.Record {
	return &entity.Record{
		Index:       3,
		Type:        entity.Incident,
		ExternalRef: ref,
		Fields:      map[string]any{"title": "Slip", "severity": "low", "external_ref": ref},
	}
}

func TestCreate_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/incidents", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newClient(srv, Options{}).Create(t.Context(), incident("INC-1"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Slip", "severity": "low", "external_ref": "INC-1"}, got)
}

func TestCreate_Conflict(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	err := newClient(srv, Options{MaxRetries: 3, RetryInitial: time.Millisecond}).Create(t.Context(), incident("INC-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Equal(t, int32(1), calls.Load(), "conflicts are never retried")
}

func TestCreate_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"severity invalid"}`))
	}))
	defer srv.Close()

	err := newClient(srv, Options{MaxRetries: 3, RetryInitial: time.Millisecond}).Create(t.Context(), incident("INC-1"))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 422, se.StatusCode)
	assert.Equal(t, `API returned 422 Unprocessable Entity: {"detail":"severity invalid"}`, se.Error())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreate_RetriesTransientStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		failFirst int32
		retries   int
		wantErr   bool
		wantCalls int32
	}{
		{"503 then success", http.StatusServiceUnavailable, 2, 2, false, 3},
		{"429 then success", http.StatusTooManyRequests, 1, 2, false, 2},
		{"502 exhausts retries", http.StatusBadGateway, 10, 2, true, 3},
		{"504 without retries", http.StatusGatewayTimeout, 10, 0, true, 1},
		{"500 is not retried", http.StatusInternalServerError, 10, 2, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= tt.failFirst {
					w.WriteHeader(tt.status)
					return
				}
				w.WriteHeader(http.StatusCreated)
			}))
			defer srv.Close()

			err := newClient(srv, Options{MaxRetries: tt.retries, RetryInitial: time.Millisecond}).
				Create(t.Context(), incident("INC-1"))
			if tt.wantErr {
				var se *StatusError
				require.True(t, errors.As(err, &se), "got %v", err)
				assert.Equal(t, tt.status, se.StatusCode)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestCreate_LogsCarryRunID(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	env := config.Environment{Name: "test", BaseURL: srv.URL, AllowPrivate: true}
	c := New(httpclient.ForEnvironment(&config.Config{}, env), env,
		Options{MaxRetries: 1, RetryInitial: time.Millisecond}, zap.New(core).Sugar())

	ctx := logger.WithRunID(t.Context(), "run-42")
	require.NoError(t, c.Create(ctx, incident("INC-1")))

	retries := logs.FilterMessage("Retrying create").All()
	require.Len(t, retries, 1)
	assert.Equal(t, "run-42", retries[0].ContextMap()[logger.FieldRunID])
	for _, e := range logs.FilterMessage("Create call").All() {
		assert.Equal(t, "run-42", e.ContextMap()[logger.FieldRunID])
	}
}

func TestCreate_NetworkErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newClient(srv, Options{MaxRetries: 1, RetryInitial: time.Millisecond})
	srv.Close()

	err := c.Create(t.Context(), incident("INC-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable), "got %v", err)
}

func TestCreate_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newClient(srv, Options{RequestsPerSecond: 20})
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Create(t.Context(), incident("INC-1")))
	}
	// burst of 1 at 20/s: the second and third calls wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCreate_NotImportable(t *testing.T) {
	c := New(httpclient.NewSaferClient(time.Second), config.Environment{BaseURL: "https://api.example.com"}, Options{}, nil)
	err := c.Create(t.Context(), &entity.Record{Type: entity.Analysis, Fields: map[string]any{}})
	assert.True(t, errors.Is(err, entity.ErrNotImportable))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&config.Config{Import: config.ImportConfig{MaxRetries: 4, RequestsPerSecond: 2.5}})
	assert.Equal(t, Options{MaxRetries: 4, RetryInitial: 200 * time.Millisecond, RequestsPerSecond: 2.5}, opts)
}
