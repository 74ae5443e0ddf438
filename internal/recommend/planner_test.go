package recommend

import (
	"testing"

	"github.com/osusume-io/osusume/internal/partition"
)

func TestQuota_Size(t *testing.T) {
	cases := []struct {
		quota Quota
		t     int
		want  int
	}{
		{Quota{Ratio: 0.5, Floor: 2}, 12, 8},
		{Quota{Ratio: 0.3, Floor: 1}, 12, 4},
		{Quota{Ratio: 0.2, Floor: 1, Min: 3}, 12, 3},
		{Quota{Ratio: 0.2, Floor: 1, Min: 3}, 100, 21},
		{Quota{Ratio: 0.5, Floor: 2}, 0, 2},
		{Quota{Ratio: 0.5, Floor: 2}, -4, 2},
		{Quota{Ratio: 0.5, Floor: 0}, 1, 0},
	}
	for _, tc := range cases {
		if got := tc.quota.Size(tc.t); got != tc.want {
			t.Errorf("Size(%d) with %+v = %d, want %d", tc.t, tc.quota, got, tc.want)
		}
	}
}

func buildRegistry(t *testing.T, entries []partition.Entry) *partition.Registry {
	t.Helper()
	r := partition.NewRegistry(nil)
	c := partition.NewClassifier(partition.DefaultRules(), "")
	if _, err := r.BuildAll(entries, c); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestPlanner_BlendMergesAcrossPartitions(t *testing.T) {
	// Query (1,0) makes each item's first component its score.
	registry := buildRegistry(t, []partition.Entry{
		{ID: "dress.jpg", Vector: []float32{0.9, 0}, Label: "Apparel"},
		{ID: "shirt.jpg", Vector: []float32{0.7, 0}, Label: "Apparel"},
		{ID: "sneaker.jpg", Vector: []float32{0.85, 0}, Label: "Footwear"},
		{ID: "watch.jpg", Vector: []float32{0.8, 0}, Label: "Accessories"},
	})
	p := NewPlanner(registry, nil)

	results := p.Blend([]float32{1, 0}, 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"dress.jpg", "sneaker.jpg", "watch.jpg"}
	for i, id := range want {
		if results[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, results[i].ID, id)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestPlanner_BlendTiesFavorPolicyOrder(t *testing.T) {
	registry := buildRegistry(t, []partition.Entry{
		{ID: "shirt.jpg", Vector: []float32{0.5, 0}, Label: "Apparel"},
		{ID: "boot.jpg", Vector: []float32{0.5, 0}, Label: "Footwear"},
	})
	p := NewPlanner(registry, nil)

	results := p.Blend([]float32{1, 0}, 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "shirt.jpg" {
		t.Errorf("equal scores should favor the earlier quota, got %s first", results[0].ID)
	}
}

func TestPlanner_BlendUnderfill(t *testing.T) {
	registry := buildRegistry(t, []partition.Entry{
		{ID: "dress.jpg", Vector: []float32{0.9, 0}, Label: "Apparel"},
	})
	p := NewPlanner(registry, nil)

	results := p.Blend([]float32{1, 0}, 10)
	if len(results) != 1 {
		t.Errorf("expected under-filled list of 1, got %d", len(results))
	}
	if got := p.Blend([]float32{1, 0}, 0); got != nil {
		t.Errorf("t=0 should return nil, got %v", got)
	}
}

func TestPlanner_MissingPartitionIsSkipped(t *testing.T) {
	// No footwear items at all; blending must not fail or stall.
	registry := buildRegistry(t, []partition.Entry{
		{ID: "dress.jpg", Vector: []float32{0.9, 0}, Label: "Apparel"},
		{ID: "watch.jpg", Vector: []float32{0.3, 0}, Label: "Accessories"},
	})
	p := NewPlanner(registry, nil)

	results := p.Blend([]float32{1, 0}, 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "dress.jpg" || results[1].ID != "watch.jpg" {
		t.Errorf("unexpected order: %v", results)
	}
}

func TestNewPlanner_DefaultQuotas(t *testing.T) {
	p := NewPlanner(partition.NewRegistry(nil), nil)
	quotas := p.Quotas()
	if len(quotas) != 3 {
		t.Fatalf("expected 3 default quotas, got %d", len(quotas))
	}
	if quotas[0].Key != "apparel" || quotas[2].Key != partition.DefaultKey {
		t.Errorf("unexpected quota order: %+v", quotas)
	}
}
