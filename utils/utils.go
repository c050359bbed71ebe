package utils

import (
	"github.com/twmb/murmur3"
	"sort"
	"strings"
)

func HashString(s string) uint64 {
	hash := murmur3.New64()
	_, err := hash.Write([]byte(s))
	if err != nil {
		panic(err)
	}
	return hash.Sum64()
}

// HashParts hashes the parts with a separator that cannot appear in model text,
// so ("ab", "c") and ("a", "bc") never collide.
func HashParts(parts ...string) uint64 {
	hash := murmur3.New64()
	for i, p := range parts {
		if i > 0 {
			_, _ = hash.Write([]byte{0})
		}
		_, err := hash.Write([]byte(p))
		if err != nil {
			panic(err)
		}
	}
	return hash.Sum64()
}

func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TitleCase turns "vital_signs" into "Vital Signs".
func TitleCase(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func Humanize(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
