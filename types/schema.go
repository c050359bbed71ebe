package types

import (
	"text2phenotype.com/notex/logger"
	"text2phenotype.com/notex/utils"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"strings"
)

// Entry is one key of an ordered string mapping in the schema document.
type Entry struct {
	Key   string
	Value string
}

// OrderedMap keeps the document order of a mapping; prompts must list elements
// exactly as the schema author wrote them.
type OrderedMap []Entry

func (m *OrderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping, got %s", node.Line, kindName(node.Kind))
	}
	entries := make(OrderedMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: value of %q must be a string", value.Line, key.Value)
		}
		entries = append(entries, Entry{Key: key.Value, Value: value.Value})
	}
	*m = entries
	return nil
}

func (m OrderedMap) Get(key string) (string, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

type DataClass struct {
	Name        string     `yaml:"-"`
	Description string     `yaml:"description"`
	Elements    OrderedMap `yaml:"elements"`
	Subtypes    OrderedMap `yaml:"subtypes"`
	Prompt      string     `yaml:"prompt"`
}

type DataClasses []DataClass

func (dc *DataClasses) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: data_classes must be a mapping, got %s", node.Line, kindName(node.Kind))
	}
	classes := make(DataClasses, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var class DataClass
		if err := node.Content[i+1].Decode(&class); err != nil {
			return fmt.Errorf("data class %q: %w", node.Content[i].Value, err)
		}
		class.Name = node.Content[i].Value
		classes = append(classes, class)
	}
	*dc = classes
	return nil
}

type ExtractionInstructions struct {
	General               string     `yaml:"general"`
	OutputFormat          string     `yaml:"output_format"`
	HandleMissingData     string     `yaml:"handle_missing_data"`
	DateFormat            string     `yaml:"date_format"`
	CoreferenceResolution string     `yaml:"coreference_resolution"`
	NegationDetection     string     `yaml:"negation_detection"`
	Gotchas               []string   `yaml:"gotchas"`
	CodingSystems         OrderedMap `yaml:"coding_systems"`
}

// Schema is the data-class taxonomy the USCDI extractors prompt with. It is read
// once at startup and never mutated.
type Schema struct {
	Version            string                 `yaml:"version"`
	MasterSystemPrompt string                 `yaml:"master_system_prompt"`
	GlobalUpgrades     string                 `yaml:"global_upgrades"`
	DataClasses        DataClasses            `yaml:"data_classes"`
	Instructions       ExtractionInstructions `yaml:"extraction_instructions"`
}

func (s *Schema) Class(name string) (DataClass, bool) {
	for _, c := range s.DataClasses {
		if c.Name == name {
			return c, true
		}
	}
	return DataClass{}, false
}

func (s *Schema) ClassNames() []string {
	names := make([]string, len(s.DataClasses))
	for i, c := range s.DataClasses {
		names[i] = c.Name
	}
	return names
}

// Descriptions maps every data class name to its description.
func (s *Schema) Descriptions() map[string]string {
	out := make(map[string]string, len(s.DataClasses))
	for _, c := range s.DataClasses {
		out[c.Name] = c.Description
	}
	return out
}

func (s *Schema) Fingerprint() uint64 {
	return utils.HashParts(append([]string{s.Version}, s.ClassNames()...)...)
}

func (s *Schema) validate() error {
	if strings.TrimSpace(s.Version) == "" {
		return fmt.Errorf("schema has no version")
	}
	if len(s.DataClasses) == 0 {
		return fmt.Errorf("schema has no data classes")
	}
	seen := make(map[string]bool, len(s.DataClasses))
	for _, c := range s.DataClasses {
		if c.Name == "" {
			return fmt.Errorf("schema has a data class without a name")
		}
		if seen[c.Name] {
			return fmt.Errorf("data class %q is defined twice", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// ParseSchema reads a YAML or JSON schema document.
func ParseSchema(buf []byte) (*Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(buf, &schema); err != nil {
		return nil, &ConfigurationError{What: "schema document", Cause: err}
	}
	if err := schema.validate(); err != nil {
		return nil, &ConfigurationError{What: "schema document", Cause: err}
	}
	return &schema, nil
}

func LoadSchema(filePath string) (*Schema, error) {
	schemaLogger := logger.NewLogger("LoadSchema")
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &ConfigurationError{What: "schema document " + filePath, Cause: err}
	}
	schema, err := ParseSchema(buf)
	if err != nil {
		return nil, err
	}
	schemaLogger.Info().
		Str("path", filePath).
		Str("version", schema.Version).
		Int("data_classes", len(schema.DataClasses)).
		Uint64("fingerprint", schema.Fingerprint()).
		Msg("Loaded schema")
	return schema, nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
