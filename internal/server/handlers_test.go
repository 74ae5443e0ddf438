package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/osusume-io/osusume/internal/behavior"
	"github.com/osusume-io/osusume/internal/catalog"
	"github.com/osusume-io/osusume/internal/config"
	"github.com/osusume-io/osusume/internal/embedding"
	"github.com/osusume-io/osusume/internal/indexer"
	"github.com/osusume-io/osusume/internal/models"
	"github.com/osusume-io/osusume/internal/partition"
	"github.com/osusume-io/osusume/internal/recommend"
	"github.com/osusume-io/osusume/internal/search"
	"github.com/osusume-io/osusume/internal/session"
	"github.com/osusume-io/osusume/internal/vector"
)

func newTestServer(t *testing.T, seed bool) *Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	behaviors, err := behavior.NewStore(filepath.Join(dir, "behavior.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { behaviors.Close() })
	cat, err := catalog.NewStore(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { cat.Close() })

	if seed {
		items := []catalog.Item{
			{Path: "dress.jpg", Caption: "Red Dress Apparel"},
			{Path: "sneaker.jpg", Caption: "Casual Shoes Footwear"},
			{Path: "watch.jpg", Caption: "Steel Watch Accessories"},
		}
		for _, item := range items {
			if err := cat.Upsert(ctx, item); err != nil {
				t.Fatal(err)
			}
		}
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	embedder := embedding.NewMockEmbedder(8)
	classifier := partition.NewClassifier(cfg.Recommend.Rules, cfg.Recommend.DefaultPartition)
	registry := partition.NewRegistry(nil)
	global := vector.NewHandle()
	builder := indexer.NewBuilder(cat, embedder, classifier, registry, global,
		nil, filepath.Join(dir, "indices"), nil)
	if seed {
		if err := builder.Build(ctx); err != nil {
			t.Fatal(err)
		}
	}

	searches := search.NewService(global, nil, embedder, cat, behaviors,
		session.NewCache(100), 1.0, 0.3, nil)
	recs := recommend.NewService(
		recommend.NewPlanner(registry, nil),
		recommend.NewInterestBuilder(behaviors, embedder, 3),
		cat, behaviors, session.NewCache(100), nil,
	)
	return NewServer(searches, recs, builder, behaviors, cat, registry, global, cfg, zap.NewNop())
}

func withUserID(r *http.Request, userID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("userID", userID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleTextSearch(t *testing.T) {
	srv := newTestServer(t, true)

	body, _ := json.Marshal(textSearchRequest{UserID: 1, Query: "sneaker.jpg", Limit: 2})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search/text", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleTextSearch(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results=%d", len(resp.Results))
	}
	if resp.Results[0].Path != "sneaker.jpg" {
		t.Errorf("top result=%s", resp.Results[0].Path)
	}
}

func TestHandleTextSearch_InvalidBody(t *testing.T) {
	srv := newTestServer(t, false)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/search/text", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	srv.handleTextSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status=%d", w.Code)
	}
}

func TestHandleImageSearch_MissingPath(t *testing.T) {
	srv := newTestServer(t, true)

	body, _ := json.Marshal(imageSearchRequest{UserID: 1})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/search/image", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleImageSearch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status=%d", w.Code)
	}
}

func TestHandleRecommendations(t *testing.T) {
	srv := newTestServer(t, true)

	r := withUserID(httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/7?count=3", nil), "7")
	w := httptest.NewRecorder()
	srv.handleRecommendations(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var rec models.Recommendation
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.Items) != 3 {
		t.Errorf("items=%d", len(rec.Items))
	}
	if rec.Personalized {
		t.Error("fresh user should not be personalized")
	}
}

func TestHandleRecommendations_InvalidUserID(t *testing.T) {
	srv := newTestServer(t, false)

	r := withUserID(httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/zero", nil), "zero")
	w := httptest.NewRecorder()
	srv.handleRecommendations(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status=%d", w.Code)
	}
}

func TestHandleRecommendationClick_RefreshesList(t *testing.T) {
	srv := newTestServer(t, true)

	// Prime a session via a recommendation request.
	r := withUserID(httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/9?count=3", nil), "9")
	w := httptest.NewRecorder()
	srv.handleRecommendations(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	body, _ := json.Marshal(clickRequest{UserID: 9, Index: 0, Count: 3})
	r = httptest.NewRequest(http.MethodPost, "/api/v1/clicks/recommendation", bytes.NewReader(body))
	w = httptest.NewRecorder()
	srv.handleRecommendationClick(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var rec models.Recommendation
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if !rec.Personalized {
		t.Error("the click should personalize the refreshed list")
	}

	events, err := srv.behaviors.History(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != behavior.EventClick {
		t.Errorf("events=%+v", events)
	}
}

func TestHandleHistoryLifecycle(t *testing.T) {
	srv := newTestServer(t, true)
	ctx := context.Background()
	if err := srv.behaviors.Add(ctx, 5, behavior.EventSearch, "red dress"); err != nil {
		t.Fatal(err)
	}

	r := withUserID(httptest.NewRequest(http.MethodGet, "/api/v1/users/5/history", nil), "5")
	w := httptest.NewRecorder()
	srv.handleHistory(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out struct {
		Events []behavior.Event `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Events) != 1 || out.Events[0].Value != "red dress" {
		t.Errorf("events=%+v", out.Events)
	}

	r = withUserID(httptest.NewRequest(http.MethodDelete, "/api/v1/users/5/history", nil), "5")
	w = httptest.NewRecorder()
	srv.handleDeleteHistory(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status=%d", w.Code)
	}
	events, _ := srv.behaviors.History(ctx, 5)
	if len(events) != 0 {
		t.Errorf("history should be empty after delete, got %d", len(events))
	}
}

func TestHandleRebuild_EmptyCatalog(t *testing.T) {
	srv := newTestServer(t, false)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/rebuild", nil)
	w := httptest.NewRecorder()
	srv.handleRebuild(w, r)
	if w.Code != http.StatusConflict {
		t.Errorf("status=%d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t, true)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out struct {
		CatalogItems    int64          `json:"catalog_items"`
		GlobalIndexSize int            `json:"global_index_size"`
		Partitions      map[string]int `json:"partitions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.CatalogItems != 3 || out.GlobalIndexSize != 3 {
		t.Errorf("status=%+v", out)
	}
	if out.Partitions["apparel"] != 1 || out.Partitions["footwear"] != 1 || out.Partitions["others"] != 1 {
		t.Errorf("partitions=%v", out.Partitions)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, false)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status=%d", w.Code)
	}
}
