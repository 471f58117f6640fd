package embedding

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

const defaultMaxTokens = 256

// Words lowercases text and splits it on every rune that is not a letter or digit.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SimpleTokenizer maps words to hash-based token IDs. It needs no vocabulary and is only
// useful with models trained on the same scheme, or as a fallback.
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	words := Words(text)
	ids := make([]int64, len(words))
	for i, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		ids[i] = int64(1000 + h.Sum32()%29000)
	}
	return frame(ids, 101, 102, 0, maxTokens)
}

// WordPieceTokenizer implements the BERT uncased tokenizer: basic cleanup, accent stripping,
// punctuation splitting and greedy longest-match-first word pieces over a vocab.txt file.
type WordPieceTokenizer struct {
	vocab       map[string]int64
	clsID       int64
	sepID       int64
	padID       int64
	unkID       int64
	maxWordRune int
}

// LoadWordPieceTokenizer reads a vocab.txt file with one token per line.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	return NewWordPieceTokenizer(f)
}

// NewWordPieceTokenizer reads a vocabulary where the line number is the token id.
func NewWordPieceTokenizer(r io.Reader) (*WordPieceTokenizer, error) {
	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(r)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[token]; !dup {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}

	t := &WordPieceTokenizer{vocab: vocab, maxWordRune: 100}
	for name, dst := range map[string]*int64{"[CLS]": &t.clsID, "[SEP]": &t.sepID, "[PAD]": &t.padID, "[UNK]": &t.unkID} {
		v, ok := vocab[name]
		if !ok {
			return nil, fmt.Errorf("vocab is missing special token %s", name)
		}
		*dst = v
	}
	return t, nil
}

// Tokenize returns [CLS] pieces... [SEP] padded with [PAD] to maxTokens.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	var ids []int64
	for _, word := range basicTokens(text) {
		ids = append(ids, t.pieces(word)...)
	}
	return frame(ids, t.clsID, t.sepID, t.padID, maxTokens)
}

func (t *WordPieceTokenizer) pieces(word string) []int64 {
	rs := []rune(word)
	if len(rs) > t.maxWordRune {
		return []int64{t.unkID}
	}
	var out []int64
	for start := 0; start < len(rs); {
		end := len(rs)
		found := int64(-1)
		for ; end > start; end-- {
			sub := string(rs[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			return []int64{t.unkID}
		}
		out = append(out, found)
		start = end
	}
	return out
}

// basicTokens lowercases, strips accents and splits on whitespace and punctuation.
// Punctuation and CJK runes become single-rune tokens.
func basicTokens(text string) []string {
	// Chains carry state, so each call builds its own.
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	clean, _, err := transform.String(stripAccents, strings.ToLower(text))
	if err != nil {
		clean = strings.ToLower(text)
	}
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range clean {
		switch {
		case r == 0 || r == unicode.ReplacementChar || (unicode.IsControl(r) && !unicode.IsSpace(r)):
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// frame wraps ids in cls/sep, truncating to fit and padding to maxTokens.
func frame(ids []int64, cls, sep, pad int64, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = defaultMaxTokens
	}
	if len(ids) > maxTokens-2 {
		ids = ids[:maxTokens-2]
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i := range inputIDs {
		inputIDs[i] = pad
	}

	inputIDs[0] = cls
	attentionMask[0] = 1
	for i, id := range ids {
		inputIDs[i+1] = id
		attentionMask[i+1] = 1
	}
	inputIDs[len(ids)+1] = sep
	attentionMask[len(ids)+1] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}
