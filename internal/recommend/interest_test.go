package recommend

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/osusume-io/osusume/internal/behavior"
	"github.com/osusume-io/osusume/internal/embedding"
)

func newBehaviorStore(t *testing.T) *behavior.Store {
	t.Helper()
	store, err := behavior.NewStore(filepath.Join(t.TempDir(), "behavior.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// captureEmbedder records what it was asked to encode.
type captureEmbedder struct {
	*embedding.MockEmbedder
	images []string
	texts  []string
}

func (e *captureEmbedder) EncodeImages(ctx context.Context, paths []string) ([][]float32, error) {
	e.images = append(e.images, paths...)
	return e.MockEmbedder.EncodeImages(ctx, paths)
}

func (e *captureEmbedder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.texts = append(e.texts, texts...)
	return e.MockEmbedder.EncodeTexts(ctx, texts)
}

func TestInterestBuilder_NoEvents(t *testing.T) {
	store := newBehaviorStore(t)
	b := NewInterestBuilder(store, embedding.NewMockEmbedder(8), 3)

	vec, err := b.Build(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if vec != nil {
		t.Errorf("expected nil interest for a user with no events, got %v", vec)
	}
}

func TestInterestBuilder_SingleClick(t *testing.T) {
	ctx := context.Background()
	store := newBehaviorStore(t)
	mock := embedding.NewMockEmbedder(8)
	b := NewInterestBuilder(store, mock, 3)

	if err := store.Add(ctx, 1, behavior.EventClick, "images/dress.jpg"); err != nil {
		t.Fatal(err)
	}
	vec, err := b.Build(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if vec == nil {
		t.Fatal("expected an interest vector")
	}

	want, _ := mock.EncodeImages(ctx, []string{"images/dress.jpg"})
	for i := range vec {
		if math.Abs(float64(vec[i]-want[0][i])) > 1e-5 {
			t.Fatalf("single-click interest should equal the click embedding, differs at %d", i)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("interest vector not unit norm: %f", norm)
	}
}

func TestInterestBuilder_MixedEventsAndMarker(t *testing.T) {
	ctx := context.Background()
	store := newBehaviorStore(t)
	emb := &captureEmbedder{MockEmbedder: embedding.NewMockEmbedder(8)}
	b := NewInterestBuilder(store, emb, 3)

	if err := store.Add(ctx, 2, behavior.EventSearch, "red dress"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := store.Add(ctx, 2, behavior.EventClick, "images/dress.jpg"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := store.Add(ctx, 2, behavior.EventSearch, ImageSearchMarker+"blue sneaker"); err != nil {
		t.Fatal(err)
	}

	vec, err := b.Build(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if vec == nil {
		t.Fatal("expected an interest vector")
	}
	if len(emb.images) != 1 || emb.images[0] != "images/dress.jpg" {
		t.Errorf("encoded images=%v", emb.images)
	}
	if len(emb.texts) != 2 {
		t.Fatalf("encoded texts=%v", emb.texts)
	}
	for _, text := range emb.texts {
		if text != "red dress" && text != "blue sneaker" {
			t.Errorf("marker not stripped from %q", text)
		}
	}
}

func TestInterestBuilder_RecentWindow(t *testing.T) {
	ctx := context.Background()
	store := newBehaviorStore(t)
	emb := &captureEmbedder{MockEmbedder: embedding.NewMockEmbedder(8)}
	b := NewInterestBuilder(store, emb, 2)

	for _, q := range []string{"old query", "mid query", "new query"} {
		if err := store.Add(ctx, 3, behavior.EventSearch, q); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if _, err := b.Build(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if len(emb.texts) != 2 {
		t.Fatalf("expected the 2 most recent events, encoded %v", emb.texts)
	}
	for _, text := range emb.texts {
		if text == "old query" {
			t.Error("oldest event should fall outside the recency window")
		}
	}
}
