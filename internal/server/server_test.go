package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"planetalign/internal/centroid"
	"planetalign/internal/config"
	"planetalign/internal/geom"
	"planetalign/internal/logging"
	"planetalign/internal/pipeline"
	"planetalign/internal/tasks"
)

type okDetector struct{}

func (okDetector) Detect(ctx context.Context, framePath string) (centroid.Centroid, error) {
	return centroid.Centroid{Center: geom.Point{X: 50, Y: 50}, Size: geom.Size{Width: 10, Height: 10}}, nil
}

type okCropper struct{}

func (okCropper) Crop(ctx context.Context, req tasks.CropRequest) (string, error) {
	return req.OutputPath(), nil
}

func testServer(t *testing.T) (*Server, *pipeline.Pipeline, *mux.Router) {
	t.Helper()
	opts := config.Default().Processing
	opts.DetectWorkers = 1
	opts.CropWorkers = 1
	logger := logging.New("error", "text")
	aligner := pipeline.NewAligner(logger, okDetector{}, okCropper{}, opts)
	pipe := pipeline.New(context.Background(), logger, aligner)
	t.Cleanup(pipe.Stop)

	s := New("127.0.0.1:0", pipe, logger)
	r := mux.NewRouter()
	s.setupRoutes(r)
	return s, pipe, r
}

func TestHealthz(t *testing.T) {
	_, _, r := testServer(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAlignAcceptsBatch(t *testing.T) {
	_, pipe, r := testServer(t)
	dir := t.TempDir()

	body := `{"output_dir":"` + filepath.Join(dir, "out") + `","frames":["` + filepath.Join(dir, "a.jpg") + `"]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/align", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatalf("expected job id in response, got %v", resp)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		recent := pipe.Recent()
		if len(recent) == 1 {
			if recent[0].Job.ID != id {
				t.Fatalf("expected job %s, got %s", id, recent[0].Job.ID)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("submitted batch never completed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	var results []pipeline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Job.ID != id {
		t.Fatalf("unexpected jobs payload: %s", rec.Body.String())
	}
}

func TestAlignRejectsEmptyRequest(t *testing.T) {
	_, _, r := testServer(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/align", strings.NewReader(`{"output_dir":"/tmp/out"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty frame list, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/align", strings.NewReader(`{"frames":["a.jpg"]}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing output_dir, got %d", rec.Code)
	}
}
