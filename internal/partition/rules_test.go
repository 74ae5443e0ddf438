package partition

import "testing"

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(DefaultRules(), "")

	cases := []struct {
		label string
		want  string
	}{
		{"Apparel", "apparel"},
		{"Topwear Apparel Men", "apparel"},
		{"Footwear", "footwear"},
		{"Casual Shoes", "footwear"},
		{"apparel-style sport shoes", "footwear"},
		{"Accessories", "others"},
		{"", "others"},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.label); got != tc.want {
			t.Errorf("Classify(%q)=%q, want %q", tc.label, got, tc.want)
		}
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	c := NewClassifier(DefaultRules(), "")
	label := "Footwear and Apparel"
	first := c.Classify(label)
	for i := 0; i < 10; i++ {
		if got := c.Classify(label); got != first {
			t.Fatalf("classification not deterministic: %q then %q", first, got)
		}
	}
}

func TestClassifier_CustomRulesAndDefault(t *testing.T) {
	c := NewClassifier([]Rule{
		{Key: "bags", Keywords: []string{"bag", "backpack"}},
	}, "misc")
	if got := c.Classify("Leather Bag"); got != "bags" {
		t.Errorf("got %q", got)
	}
	if got := c.Classify("Sunglasses"); got != "misc" {
		t.Errorf("got %q", got)
	}
}

func TestClassifier_Keys(t *testing.T) {
	c := NewClassifier(DefaultRules(), "")
	keys := c.Keys()
	want := []string{"footwear", "apparel", "others"}
	if len(keys) != len(want) {
		t.Fatalf("Keys()=%v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys()[%d]=%q, want %q", i, keys[i], want[i])
		}
	}
}
