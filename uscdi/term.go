package uscdi

import (
	"text2phenotype.com/notex/types"
	"text2phenotype.com/notex/utils"
	"strings"
)

// TermFields lists the record fields that may carry the primary clinical term,
// highest priority first.
var TermFields = []string{
	"name", "text", "medication", "substance", "allergen", "problem",
	"procedure", "test", "measurement", "condition", "diagnosis",
	"vaccine", "device", "imaging_type", "type", "description", "term", "drug",
}

const minFallbackTermLen = 2

// PrimaryTerm finds the clinical term of a record and the field it came from.
// The first priority field holding a non-empty string wins. Otherwise the
// first non-reserved field, in key order, whose trimmed string value is longer
// than two characters is used.
func PrimaryTerm(record types.Record) (term, field string, ok bool) {
	for _, name := range TermFields {
		if s, isString := record[name].(string); isString && s != "" {
			return s, name, true
		}
	}
	for _, key := range utils.SortedKeys(record) {
		if types.IsReserved(key) {
			continue
		}
		if s, isString := record[key].(string); isString && len(strings.TrimSpace(s)) > minFallbackTermLen {
			return s, key, true
		}
	}
	return "", "", false
}
