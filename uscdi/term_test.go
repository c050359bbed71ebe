package uscdi

import (
	"github.com/stretchr/testify/require"
	"testing"
)

func TestPrimaryTerm(t *testing.T) {
	cases := []struct {
		name   string
		record map[string]interface{}
		term   string
		field  string
		found  bool
	}{
		{"name first", record("name", "Lisinopril", "drug", "ACE inhibitor"), "Lisinopril", "name", true},
		{"empty name skipped", record("drug", "Metformin", "name", ""), "Metformin", "drug", true},
		{"priority order", record("description", "Chest x-ray", "imaging_type", "X-ray"), "X-ray", "imaging_type", true},
		{"non-string priority field", record("name", 42, "status", "active"), "active", "status", true},
		{"fallback skips short values", record("code", "I1", "note", "elevated blood pressure"), "elevated blood pressure", "note", true},
		{"fallback skips reserved", record("_source", "batch one", "value", "ok"), "", "", false},
		{"nothing usable", record("value", 120, "unit", "mg"), "", "", false},
		{"empty record", record(), "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			term, field, found := PrimaryTerm(tc.record)
			require.Equal(t, tc.found, found)
			require.Equal(t, tc.term, term)
			require.Equal(t, tc.field, field)
		})
	}
}
