package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/medrag/internal/collection"
	"github.com/hyperjump/medrag/internal/config"
	"github.com/hyperjump/medrag/internal/embedding"
	"github.com/hyperjump/medrag/internal/indexer"
	"github.com/hyperjump/medrag/internal/models"
	"github.com/hyperjump/medrag/internal/retriever"
	"github.com/hyperjump/medrag/internal/storage"
	"go.uber.org/zap"
)

const testCollection = "medical_knowledge"

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	kb := filepath.Join(dir, "kb")
	if err := os.Mkdir(kb, 0755); err != nil {
		t.Fatal(err)
	}
	writeDoc(t, filepath.Join(kb, "migraine.txt"), "Symptoms\nthrobbing headache with nausea and light sensitivity")
	writeDoc(t, filepath.Join(kb, "asthma.txt"), "Symptoms\nwheezing cough and shortness of breath")

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "kb.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	emb := embedding.NewHashEmbedder(384)
	idx := indexer.NewIndexer(kb, emb, nil, nil)
	mgr := collection.NewManager(store, emb, nil)
	mgr.SetBuilder(idx.Build)
	coll, err := mgr.GetOrCreate(context.Background(), testCollection)
	if err != nil {
		t.Fatal(err)
	}
	ret := retriever.New(emb, coll)
	srv := NewServer(ret, mgr, testCollection, &config.ServerConfig{Port: 8090}, zap.NewNop())
	return srv, kb
}

func writeDoc(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleRetrieve(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/retrieve",
		`{"query": "throbbing headache with nausea", "n_results": 5, "min_relevance_score": 0.3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out retrieveResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 1 || out.Results[0].Source != "migraine" || out.Results[0].Rank != 1 {
		t.Fatalf("results = %+v", out.Results)
	}
	if !strings.HasPrefix(out.Context, "RELEVANT MEDICAL KNOWLEDGE:\n") ||
		!strings.Contains(out.Context, "[Source: migraine - Symptoms]") {
		t.Errorf("context = %q", out.Context)
	}
}

func TestHandleRetrieve_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, body := range []string{"not json", `{"query": "   "}`} {
		w := do(t, srv.Handler(), http.MethodPost, "/api/v1/retrieve", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, w.Code)
		}
	}
}

func TestHandleRetrieve_Disabled(t *testing.T) {
	srv := NewServer(nil, nil, testCollection, &config.ServerConfig{}, nil)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/retrieve", `{"query": "headache"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out retrieveResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Results == nil || len(out.Results) != 0 || out.Context != "" {
		t.Errorf("got %+v, want empty results and context", out)
	}

	if w := do(t, srv.Handler(), http.MethodGet, "/api/v1/collection", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("stats status: got %d", w.Code)
	}
}

func TestHandleFormat(t *testing.T) {
	srv := NewServer(nil, nil, testCollection, &config.ServerConfig{}, nil)
	req := formatRequest{Results: []models.RetrievalResult{
		{Text: "Rest.", Source: "flu", Section: "Treatment", RelevanceScore: 0.9, Rank: 1},
	}}
	body, _ := json.Marshal(req)
	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/format", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	want := "RELEVANT MEDICAL KNOWLEDGE:\n\n\n[Source: flu - Treatment]\nRest.\n"
	if out["context"] != want {
		t.Errorf("context = %q, want %q", out["context"], want)
	}
}

func TestHandleStatsAndReset(t *testing.T) {
	srv, kb := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, http.MethodGet, "/api/v1/collection", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var before models.CollectionStats
	if err := json.NewDecoder(w.Body).Decode(&before); err != nil {
		t.Fatal(err)
	}
	if before.Count != 2 || before.Name != testCollection || before.ModelID != "hash-384" {
		t.Fatalf("stats = %+v", before)
	}

	writeDoc(t, filepath.Join(kb, "flu.txt"), "Symptoms\nfever and muscle aches")
	w = do(t, h, http.MethodPost, "/api/v1/collection/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset status: got %d, body %s", w.Code, w.Body.String())
	}
	var after models.CollectionStats
	if err := json.NewDecoder(w.Body).Decode(&after); err != nil {
		t.Fatal(err)
	}
	if after.Count != 3 {
		t.Errorf("count after reset = %d, want 3", after.Count)
	}
	if after.Version == before.Version {
		t.Error("reset should assign a new version")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := NewServer(nil, nil, testCollection, &config.ServerConfig{}, nil)
	w := do(t, srv.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]any
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ok" || out["retrieval_enabled"] != false {
		t.Errorf("health = %v", out)
	}
}
