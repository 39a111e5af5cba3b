// Package lexicon maps surface word forms to the lemma used as vocabulary key.
package lexicon

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalizer turns a surface form into its canonical lemma for a language.
type Normalizer interface {
	Canonicalize(surfaceForm, lang string) string
}

// BasicNormalizer applies Unicode NFC, strips surrounding punctuation and
// lowercases with the language's casing rules. Irregular forms can be mapped
// explicitly with WithLemmas; everything else is its own lemma.
type BasicNormalizer struct {
	mu     sync.RWMutex
	lemmas map[string]map[string]string
}

// NewBasicNormalizer creates a normalizer with no exception tables.
func NewBasicNormalizer() *BasicNormalizer {
	return &BasicNormalizer{lemmas: make(map[string]map[string]string)}
}

// WithLemmas registers surface → lemma overrides for lang. Keys and values are
// folded the same way input is, so callers may pass them in any case.
func (n *BasicNormalizer) WithLemmas(lang string, table map[string]string) *BasicNormalizer {
	n.mu.Lock()
	defer n.mu.Unlock()

	m, ok := n.lemmas[lang]
	if !ok {
		m = make(map[string]string, len(table))
		n.lemmas[lang] = m
	}
	for surface, lemma := range table {
		if key := fold(surface, lang); key != "" {
			m[key] = fold(lemma, lang)
		}
	}
	return n
}

// Canonicalize returns the lemma for surfaceForm, or "" when nothing word-like remains.
func (n *BasicNormalizer) Canonicalize(surfaceForm, lang string) string {
	s := fold(surfaceForm, lang)
	if s == "" {
		return ""
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if lemma, ok := n.lemmas[lang][s]; ok {
		return lemma
	}
	return s
}

func fold(s, lang string) string {
	s = norm.NFC.String(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if s == "" {
		return ""
	}

	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	// Casers keep state, so one per call.
	return cases.Lower(tag).String(s)
}
