package uscdi

import (
	"strings"
)

var keyReplacer = strings.NewReplacer(" ", "_", "-", "_")

// NormalizeKey lowercases a data class key and maps spaces and hyphens to
// underscores. It is idempotent.
func NormalizeKey(key string) string {
	return keyReplacer.Replace(strings.ToLower(key))
}
