package embedding

import "testing"

func TestCLIPTokenizer_Layout(t *testing.T) {
	tok := &CLIPTokenizer{}
	ids, mask := tok.Tokenize("red dress", 77)

	if len(ids) != 77 || len(mask) != 77 {
		t.Fatalf("lengths: ids=%d mask=%d", len(ids), len(mask))
	}
	if ids[0] != clipStartToken {
		t.Errorf("ids[0]=%d", ids[0])
	}
	if ids[3] != clipEndToken {
		t.Errorf("end token should follow the 2 words, ids[3]=%d", ids[3])
	}
	for i := 0; i < 4; i++ {
		if mask[i] != 1 {
			t.Errorf("mask[%d]=%d", i, mask[i])
		}
	}
	for i := 4; i < 77; i++ {
		if ids[i] != 0 || mask[i] != 0 {
			t.Fatalf("padding broken at %d: id=%d mask=%d", i, ids[i], mask[i])
		}
	}
	for i := 1; i < 3; i++ {
		if ids[i] >= clipVocabSize {
			t.Errorf("word token %d out of vocab range: %d", i, ids[i])
		}
	}
}

func TestCLIPTokenizer_Deterministic(t *testing.T) {
	tok := &CLIPTokenizer{}
	a, _ := tok.Tokenize("casual shoes for summer", 77)
	b, _ := tok.Tokenize("casual shoes for summer", 77)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tokenization not deterministic at %d", i)
		}
	}
}

func TestCLIPTokenizer_Truncation(t *testing.T) {
	tok := &CLIPTokenizer{}
	long := ""
	for i := 0; i < 100; i++ {
		long += "word "
	}
	ids, mask := tok.Tokenize(long, 8)
	if len(ids) != 8 {
		t.Fatalf("len=%d", len(ids))
	}
	if ids[0] != clipStartToken {
		t.Errorf("ids[0]=%d", ids[0])
	}
	if ids[7] != clipEndToken {
		t.Errorf("last slot should be the end token, got %d", ids[7])
	}
	for i := range mask {
		if mask[i] != 1 {
			t.Errorf("mask[%d]=%d", i, mask[i])
		}
	}
}
