package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ent0n29/atelier/internal/generator"
	"github.com/ent0n29/atelier/internal/imagespec"
	"github.com/ent0n29/atelier/internal/tasks"
)

type blockedGenerator struct{ release chan struct{} }

func (g *blockedGenerator) Generate(ctx context.Context, _ string, _ generator.Request) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
		return []byte("png"), nil
	}
}

func newTestServer(t *testing.T) (*Server, *tasks.Engine, *tasks.PendingStore, *blockedGenerator) {
	t.Helper()
	gen := &blockedGenerator{release: make(chan struct{})}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := tasks.NewEngine(tasks.Config{
		ImageDelay:   time.Millisecond,
		RequeueDelay: time.Millisecond,
	}, gen, nil, log)
	t.Cleanup(engine.Close)
	pending := tasks.NewPendingStore(time.Hour)
	return New(engine, pending, nil, "in-memory"), engine, pending, gen
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	router := srv.Router()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := get(t, router, path)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d, want 200", path, rec.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s body: %v", path, err)
		}
		if body["credential_store_mode"] != "in-memory" {
			t.Fatalf("credential_store_mode = %v, want in-memory", body["credential_store_mode"])
		}
	}
}

func TestListQueuesRedactsCredentials(t *testing.T) {
	srv, engine, _, gen := newTestServer(t)
	defer close(gen.release)
	router := srv.Router()

	task := &tasks.Task{
		Images:   []imagespec.Image{imagespec.New("harbor", imagespec.Options{Seed: 1})},
		IssuedBy: "user-1",
	}
	engine.Enqueue("secret-credential-value", task)

	rec := get(t, router, "/v1/queues")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/queues = %d, want 200", rec.Code)
	}
	var body struct {
		Queues []queueResponse `json:"queues"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Queues) != 1 {
		t.Fatalf("len(Queues) = %d, want 1", len(body.Queues))
	}
	q := body.Queues[0]
	if q.Credential != "secr****" {
		t.Fatalf("Credential = %q, want the redacted form", q.Credential)
	}
	if q.Depth != 1 || !q.Busy {
		t.Fatalf("queue = %+v, want depth 1 and busy", q)
	}
}

func TestListApprovals(t *testing.T) {
	srv, _, pending, _ := newTestServer(t)
	router := srv.Router()

	id := pending.Hold(&tasks.Task{
		Images:   []imagespec.Image{imagespec.New("harbor", imagespec.Options{Seed: 1})},
		IssuedBy: "user-1",
	})

	rec := get(t, router, "/v1/approvals")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/approvals = %d, want 200", rec.Code)
	}
	var body struct {
		Approvals []approvalResponse `json:"approvals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Approvals) != 1 {
		t.Fatalf("len(Approvals) = %d, want 1", len(body.Approvals))
	}
	a := body.Approvals[0]
	if a.ID != id || a.Prompt != "harbor" || a.IssuedBy != "user-1" || a.Images != 1 {
		t.Fatalf("approval = %+v", a)
	}
}

func TestLatencyWithoutMetrics(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := get(t, srv.Router(), "/v1/latency")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/latency = %d, want 200", rec.Code)
	}
	var body struct {
		Stages []any `json:"stages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Stages) != 0 {
		t.Fatalf("len(Stages) = %d, want 0", len(body.Stages))
	}
}
