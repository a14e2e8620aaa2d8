package store

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

// Tokenizer and analyzer names registered with bleve's registry,
// generalized from the teacher's internal/store/bm25.go code-aware
// analyzer. Unlike the teacher's tokenizer, this one does not split
// camelCase or snake_case identifiers: conversational text is not
// source code, and SPEC_FULL.md §4.1 pins the exact rule "lower-case
// Unicode word split on non-alphanumerics, no stemming".
const (
	textTokenizerName = "memex_text_tokenizer"
	minTermFilterName = "memex_min_term_len"
	textAnalyzerName  = "memex_text_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(textTokenizerName, textTokenizerConstructor)
	_ = registry.RegisterTokenFilter(minTermFilterName, minTermFilterConstructor)
}

// addTextAnalyzer registers the custom text analyzer on m and sets it
// as the default analyzer for unmapped fields.
func addTextAnalyzer(m *mapping.IndexMappingImpl) error {
	err := m.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": textTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			minTermFilterName,
		},
	})
	if err != nil {
		return err
	}
	m.DefaultAnalyzer = textAnalyzerName
	return nil
}

// Tokens splits text the same way the index's analyzer does: lower-cased
// runs of letters and digits. IndexableTokens builds on it. The preview
// package's literal-match builder does not use it; it splits the query
// on whitespace and trims its own term edges.
func Tokens(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// IndexableTokens returns Tokens(text) filtered to terms of at least 2
// runes, matching what the full-text index actually scores on.
func IndexableTokens(text string) []string {
	all := Tokens(text)
	out := make([]string, 0, len(all))
	for _, t := range all {
		if len([]rune(t)) >= 2 {
			out = append(out, t)
		}
	}
	return out
}

type textTokenizer struct{}

func textTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &textTokenizer{}, nil
}

func (t *textTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	var stream analysis.TokenStream
	pos := 1
	start := -1
	flush := func(end int) {
		if start >= 0 {
			stream = append(stream, &analysis.Token{
				Term:     []byte(text[start:end]),
				Start:    start,
				End:      end,
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
			start = -1
		}
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(text))
	return stream
}

// minTermFilter drops tokens shorter than 2 runes from the scored term
// stream, per SPEC_FULL.md §4.1. It never affects the literal-match
// regex builder in internal/preview, which builds its terms separately.
type minTermFilter struct{}

func minTermFilterConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.TokenFilter, error) {
	return &minTermFilter{}, nil
}

func (f *minTermFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if len([]rune(string(tok.Term))) >= 2 {
			out = append(out, tok)
		}
	}
	return out
}
