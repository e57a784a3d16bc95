package filters

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases a string and strips combining diacritical marks, so that
// "Relatório" and "relatorio" compare equal in fulltext matching. The folding
// targets Latin scripts; other scripts pass through lowercased.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// FoldTokens folds a string and splits it into tokens, dropping tokens of two
// characters or fewer. Used for fulltext derivation and semantic degrade.
func FoldTokens(s string) []string {
	fields := strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
