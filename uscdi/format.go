package uscdi

import (
	"text2phenotype.com/notex/types"
	"encoding/json"
	"fmt"
	"strings"
)

var banner = strings.Repeat("=", 80)
var rule = strings.Repeat("-", 80)

// FormatOutput renders a result for a terminal: one section per populated
// data class, records as indented JSON.
func FormatOutput(result types.Result) string {
	version := "v6"
	if md, ok := result.Metadata(); ok && md.USCDIVersion != "" {
		version = md.USCDIVersion
	}
	var b strings.Builder
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "USCDI %s DATA EXTRACTION\n", strings.TrimPrefix(version, "USCDI "))
	b.WriteString(banner)

	for _, class := range result.DataClasses() {
		value := result[class]
		if isEmpty(value) {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s\n%s\n", strings.ToUpper(strings.ReplaceAll(class, "_", " ")), rule)
		switch v := value.(type) {
		case []interface{}:
			for _, item := range v {
				b.WriteString(indentJSON(item))
				b.WriteString("\n")
			}
		default:
			b.WriteString(indentJSON(v))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func indentJSON(v interface{}) string {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(buf)
}

func isEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case []interface{}:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	case string:
		return v == ""
	}
	return false
}
