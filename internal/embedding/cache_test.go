package embedding

import (
	"context"
	"testing"
)

// countingEmbedder counts how many inputs reach the inner provider.
type countingEmbedder struct {
	*MockEmbedder
	imageCalls int
	textCalls  int
}

func (e *countingEmbedder) EncodeImages(ctx context.Context, paths []string) ([][]float32, error) {
	e.imageCalls += len(paths)
	return e.MockEmbedder.EncodeImages(ctx, paths)
}

func (e *countingEmbedder) EncodeTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.textCalls += len(texts)
	return e.MockEmbedder.EncodeTexts(ctx, texts)
}

func TestCachedEmbedder_HitsSkipProvider(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	cached := NewCachedEmbedder(inner, 100)

	first, err := cached.EncodeTexts(ctx, []string{"red dress", "blue sneaker"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.textCalls != 2 {
		t.Fatalf("cold cache should forward all inputs, forwarded %d", inner.textCalls)
	}

	second, err := cached.EncodeTexts(ctx, []string{"red dress", "blue sneaker"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.textCalls != 2 {
		t.Errorf("warm cache should forward nothing, forwarded %d total", inner.textCalls)
	}
	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("cached vector differs at [%d][%d]", i, j)
			}
		}
	}
}

func TestCachedEmbedder_PartialMiss(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	cached := NewCachedEmbedder(inner, 100)

	if _, err := cached.EncodeTexts(ctx, []string{"red dress"}); err != nil {
		t.Fatal(err)
	}
	out, err := cached.EncodeTexts(ctx, []string{"red dress", "new query"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.textCalls != 2 {
		t.Errorf("only the miss should be forwarded, forwarded %d total", inner.textCalls)
	}
	if len(out) != 2 || out[0] == nil || out[1] == nil {
		t.Errorf("output should cover both inputs: %v", out)
	}
}

func TestCachedEmbedder_NamespacesImageAndText(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	cached := NewCachedEmbedder(inner, 100)

	if _, err := cached.EncodeTexts(ctx, []string{"same-key"}); err != nil {
		t.Fatal(err)
	}
	if _, err := cached.EncodeImages(ctx, []string{"same-key"}); err != nil {
		t.Fatal(err)
	}
	if inner.imageCalls != 1 {
		t.Errorf("a text entry must not satisfy an image lookup, image calls=%d", inner.imageCalls)
	}
}

func TestCachedEmbedder_Eviction(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	cached := NewCachedEmbedder(inner, 2)

	for _, q := range []string{"a", "b", "c"} {
		if _, err := cached.EncodeTexts(ctx, []string{q}); err != nil {
			t.Fatal(err)
		}
	}
	// "a" was evicted, so it costs another provider call.
	if _, err := cached.EncodeTexts(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if inner.textCalls != 4 {
		t.Errorf("expected 4 provider calls after eviction, got %d", inner.textCalls)
	}
}

func TestCachedEmbedder_EmptyInput(t *testing.T) {
	cached := NewCachedEmbedder(NewMockEmbedder(8), 10)
	out, err := cached.EncodeTexts(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		t.Errorf("empty input should return nil, got %v", out)
	}
}
