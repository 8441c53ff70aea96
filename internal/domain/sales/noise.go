package sales

import (
	"strings"
	"unicode"
)

// defaultNoiseTokens are word stems of product names and brands. A date or SKU
// field containing one of them captured the product name column.
var defaultNoiseTokens = []string{
	// categories
	"куртк", "футболк", "плать", "брюк", "джинс", "кроссовк", "ботинк", "сапог",
	"кофт", "свитер", "рубашк", "юбк", "шорт", "носк", "шапк", "перчатк",
	"сумк", "рюкзак", "чехл", "чехол", "наушник", "смартфон", "телефон",
	"зарядн", "кабел", "игрушк", "книг", "набор", "комплект", "крем", "шампун",
	// attributes
	"мужск", "женск", "детск", "зимн", "летн",
	// brands
	"samsung", "apple", "iphone", "xiaomi", "huawei", "nike", "adidas", "puma",
	"reebok", "lego",
}

// NoiseList matches text against known product-name fragments. It is
// read-only after construction.
type NoiseList struct {
	stems []string
}

// NewNoiseList creates a noise list from the built-in stems plus extra ones
func NewNoiseList(extra ...string) *NoiseList {
	seen := make(map[string]struct{}, len(defaultNoiseTokens)+len(extra))
	stems := make([]string, 0, len(defaultNoiseTokens)+len(extra))
	for _, t := range append(append([]string{}, defaultNoiseTokens...), extra...) {
		t = fold(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		stems = append(stems, t)
	}
	return &NoiseList{stems: stems}
}

// Tokens returns the stems in the list
func (l *NoiseList) Tokens() []string {
	return append([]string(nil), l.stems...)
}

// Contains reports whether any word of s starts with a noise stem
func (l *NoiseList) Contains(s string) bool {
	if l == nil || s == "" {
		return false
	}
	words := strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		for _, stem := range l.stems {
			if strings.HasPrefix(w, stem) {
				return true
			}
		}
	}
	return false
}
