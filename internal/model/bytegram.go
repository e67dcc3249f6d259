package model

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"os"
)

//go:embed corpus.txt
var defaultCorpus []byte

const byteVocabSize = 256

// ByteGram is a byte-level trigram language model over a 256-token
// vocabulary. Logits are log interpolated counts conditioned on the last
// two bytes of the text, so identical text always yields identical logits.
// It exists so the daemon works offline and the session layer can be
// tested against a real adapter.
type ByteGram struct {
	trigrams map[uint16]*[byteVocabSize]uint32
	bigrams  map[byte]*[byteVocabSize]uint32
	unigrams [byteVocabSize]uint32
}

// NewByteGram trains a model on the embedded corpus.
func NewByteGram() *ByteGram {
	return NewByteGramFromBytes(defaultCorpus)
}

// NewByteGramFromFile trains a model on the corpus at path.
func NewByteGramFromFile(path string) (*ByteGram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if len(data) < 3 {
		return nil, fmt.Errorf("corpus %s too short to train on", path)
	}
	return NewByteGramFromBytes(data), nil
}

// NewByteGramFromBytes trains a model on the given corpus.
func NewByteGramFromBytes(corpus []byte) *ByteGram {
	m := &ByteGram{
		trigrams: make(map[uint16]*[byteVocabSize]uint32),
		bigrams:  make(map[byte]*[byteVocabSize]uint32),
	}
	for i := 0; i < len(corpus); i++ {
		b := corpus[i]
		m.unigrams[b]++
		if i >= 1 {
			prev := corpus[i-1]
			row := m.bigrams[prev]
			if row == nil {
				row = new([byteVocabSize]uint32)
				m.bigrams[prev] = row
			}
			row[b]++
		}
		if i >= 2 {
			key := contextKey(corpus[i-2], corpus[i-1])
			row := m.trigrams[key]
			if row == nil {
				row = new([byteVocabSize]uint32)
				m.trigrams[key] = row
			}
			row[b]++
		}
	}
	return m
}

func contextKey(a, b byte) uint16 {
	return uint16(a)<<8 | uint16(b)
}

// NextTokenLogits scores every byte as the continuation of text.
// Trigram counts dominate, backed off through bigram and unigram counts
// with additive smoothing so every token keeps nonzero probability.
func (m *ByteGram) NextTokenLogits(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tri, bi *[byteVocabSize]uint32
	data := []byte(text)
	if len(data) >= 2 {
		tri = m.trigrams[contextKey(data[len(data)-2], data[len(data)-1])]
	}
	if len(data) >= 1 {
		bi = m.bigrams[data[len(data)-1]]
	}

	logits := make([]float32, byteVocabSize)
	for i := 0; i < byteVocabSize; i++ {
		count := 0.0
		if tri != nil {
			count += float64(tri[i])
		}
		if bi != nil {
			count += 0.3 * float64(bi[i])
		}
		count += 0.02 * float64(m.unigrams[i])
		logits[i] = float32(math.Log(count + 0.01))
	}
	return logits, nil
}

// TokenText renders a token id as its byte. Non-printable bytes come back
// as-is; display escaping is the client's concern.
func (m *ByteGram) TokenText(id int) string {
	if id < 0 || id >= byteVocabSize {
		return ""
	}
	return string([]byte{byte(id)})
}

// CountTokens reports the byte length of text; the vocabulary is bytes.
func (m *ByteGram) CountTokens(_ context.Context, text string) (int, error) {
	return len(text), nil
}

func (m *ByteGram) VocabSize() int { return byteVocabSize }
