package types

import (
	"sort"
	"strings"
)

const (
	MetadataKey = "_metadata"

	// fields the enrichment pass adds to a record
	CUIField       = "umls_cui"
	CUISourceField = "_cui_mapped_from"

	MethodParallel = "parallel"
	MethodSingle   = "single"
)

// Record is one clinical item returned by the model. No field is guaranteed.
type Record = map[string]interface{}

// Result maps a normalized data class name to a list of records, a single
// record or a scalar. Keys starting with "_" hold metadata.
type Result map[string]interface{}

type Metadata struct {
	USCDIVersion         string   `json:"uscdi_version"`
	ExtractionModel      string   `json:"extraction_model"`
	ExtractionMethod     string   `json:"extraction_method"`
	UMLSEnrichment       bool     `json:"umls_enrichment"`
	DataClassesExtracted []string `json:"data_classes_extracted"`
}

func IsReserved(key string) bool {
	return strings.HasPrefix(key, "_")
}

// DataClasses returns the populated, non-reserved keys in sorted order.
func (r Result) DataClasses() []string {
	classes := make([]string, 0, len(r))
	for k := range r {
		if !IsReserved(k) {
			classes = append(classes, k)
		}
	}
	sort.Strings(classes)
	return classes
}

func (r Result) Metadata() (Metadata, bool) {
	md, ok := r[MetadataKey].(Metadata)
	return md, ok
}

// Seal attaches the metadata envelope computed from the final key set.
func (r Result) Seal(schemaVersion, model, method string, enriched bool) {
	delete(r, MetadataKey)
	r[MetadataKey] = Metadata{
		USCDIVersion:         schemaVersion,
		ExtractionModel:      model,
		ExtractionMethod:     method,
		UMLSEnrichment:       enriched,
		DataClassesExtracted: r.DataClasses(),
	}
}
