// Package storage provides catalog source adapters.
package storage

import "strings"

// IsCatalogDocument applies the source walk rules to a relative object key.
// Only .json documents are indexed; the index/ and data/ prefixes hold
// derived artifacts and payload data, and -en.json files are localized
// variants of a primary document.
func IsCatalogDocument(key string) bool {
	lower := strings.ToLower(key)
	if !strings.HasSuffix(lower, ".json") {
		return false
	}
	if strings.HasPrefix(lower, "index/") || strings.HasPrefix(lower, "data/") {
		return false
	}
	if strings.HasSuffix(lower, "-en.json") {
		return false
	}
	return true
}
