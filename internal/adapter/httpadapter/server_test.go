package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcst-verif-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/fcst-verif-service/internal/pipeline"
)

type stubPipeline struct {
	readyErr error
	progress pipeline.Progress
}

func (s *stubPipeline) CheckReadiness(_ context.Context) error { return s.readyErr }
func (s *stubPipeline) Progress() pipeline.Progress          { return s.progress }

func serve(t *testing.T, p *stubPipeline, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := httpadapter.NewServer(":0", p, p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(t, &stubPipeline{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(t, &stubPipeline{}, "/readyz").Code)

	rec := serve(t, &stubPipeline{readyErr: errors.New("no units processed")}, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, &stubPipeline{}, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestProgressEndpoint(t *testing.T) {
	want := pipeline.Progress{Running: true, Completed: 4, Skipped: 1}
	rec := serve(t, &stubPipeline{progress: want}, "/progress")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got pipeline.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, want, got)
}

func TestProgressRejectsPost(t *testing.T) {
	srv := httpadapter.NewServer(":0", &stubPipeline{}, &stubPipeline{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/progress", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
