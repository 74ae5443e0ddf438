package embedding

// Tokenizer produces padded CLIP token IDs and an attention mask.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64)
}

// CLIP input geometry and special token IDs from the standard BPE vocabulary.
const (
	clipTokenLength = 77
	clipImageSize   = 224

	clipStartToken = 49406
	clipEndToken   = 49407
	clipVocabSize  = 49152 // hashed word IDs stay below the start/end markers
)

// CLIPTokenizer is a word-split tokenizer with hash-based token IDs. It is not
// the real CLIP BPE, but it is deterministic and keeps the start/end/padding
// layout the exported text encoder expects, which is enough for models
// re-exported with a hash vocabulary or for smoke testing a real one.
type CLIPTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *CLIPTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask []int64) {
	if maxTokens <= 0 {
		maxTokens = clipTokenLength
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)

	inputIDs[0] = clipStartToken
	attentionMask[0] = 1

	pos := 1
	for _, word := range splitWords(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(hashString(word) % clipVocabSize)
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = clipEndToken
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask
}

func splitWords(text string) []string {
	var words []string
	word := ""
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if word != "" {
				words = append(words, word)
				word = ""
			}
		} else {
			word += string(r)
		}
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}
