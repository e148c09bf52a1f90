package embedding

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// BERT special token IDs.
const (
	tokenCLS = 101
	tokenSEP = 102
)

// vocabSize bounds hashed token IDs to a MiniLM-sized vocabulary.
const vocabSize = 30000

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer is a whitespace tokenizer with hash-based token IDs. It is a
// stand-in for a real WordPiece vocabulary; embeddings stay deterministic.
type SimpleTokenizer struct{}

// Tokenize maps text to fixed-length [CLS] word... [SEP] sequences, truncating
// words that do not fit and zero-padding the remainder. All three returned
// slices have length maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	seq := []int64{tokenCLS}
	for _, word := range SplitWords(text) {
		if len(seq) >= maxTokens-1 {
			break
		}
		seq = append(seq, int64(HashString(word)%vocabSize))
	}
	if len(seq) < maxTokens {
		seq = append(seq, tokenSEP)
	}

	for i, id := range seq {
		inputIDs[i] = id
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitWords splits text on whitespace, dropping empty fields.
func SplitWords(text string) []string {
	words := strings.FieldsFunc(text, unicode.IsSpace)
	if len(words) == 0 {
		return nil
	}
	return words
}

// HashString returns a deterministic non-negative hash for use as a token ID.
func HashString(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}
