package entities

import (
	"text2phenotype.com/notex/gateway"
	"text2phenotype.com/notex/logger"
	"text2phenotype.com/notex/prompt"
	"text2phenotype.com/notex/types"
	"context"
	"github.com/rs/zerolog"
	"strconv"
	"time"
)

type Category struct {
	Key   string
	Title string
}

// Categories is the fixed entity schema, in display order.
var Categories = []Category{
	{"disorders", "Disorders/Diseases"},
	{"signs_symptoms", "Signs & Symptoms"},
	{"procedures", "Procedures"},
	{"medications", "Medications/Drugs"},
	{"anatomy", "Anatomical Structures"},
	{"lab_results", "Laboratory Results"},
	{"devices", "Medical Devices"},
	{"organisms", "Organisms"},
	{"substances", "Substances"},
	{"temporal", "Temporal Information"},
}

type Entity struct {
	Text    string `json:"text"`
	CUI     string `json:"cui,omitempty"`
	Value   string `json:"value,omitempty"`
	Context string `json:"context,omitempty"`
}

// Result holds every category key, empty categories included.
type Result map[string][]Entity

// Total counts the entities over all categories.
func (r Result) Total() int {
	total := 0
	for _, list := range r {
		total += len(list)
	}
	return total
}

type Extractor struct {
	gw       gateway.Gateway
	enLogger zerolog.Logger
}

func NewExtractor(gw gateway.Gateway) *Extractor {
	return &Extractor{
		gw:       gw,
		enLogger: logger.NewLogger("Entity extractor"),
	}
}

// Extract makes one model call and projects the answer onto the fixed
// categories. Model failures are returned to the caller.
func (e *Extractor) Extract(ctx context.Context, note, model string) (Result, error) {
	if err := types.CheckNote(note); err != nil {
		return nil, err
	}
	started := time.Now()
	obj, err := e.gw.Call(ctx, model, prompt.EntitySystemPrompt, prompt.EntityUserPrompt(note))
	if err != nil {
		e.enLogger.Error().Err(err).Str("model", model).Msg("Entity extraction failed")
		return nil, err
	}
	result := Project(obj)
	e.enLogger.Info().
		Str("model", model).
		Int("total_entities", result.Total()).
		Dur("elapsed", time.Since(started)).
		Msg("Entity extraction finished")
	return result, nil
}

// Project keeps the known categories of a model answer. Category values that
// are not lists are treated as empty; bare strings become entities with text
// only.
func Project(obj map[string]interface{}) Result {
	result := make(Result, len(Categories))
	for _, c := range Categories {
		list := []Entity{}
		items, _ := obj[c.Key].([]interface{})
		for _, item := range items {
			switch v := item.(type) {
			case map[string]interface{}:
				list = append(list, Entity{
					Text:    scalar(v["text"]),
					CUI:     scalar(v["cui"]),
					Value:   scalar(v["value"]),
					Context: scalar(v["context"]),
				})
			case string:
				if v != "" {
					list = append(list, Entity{Text: v})
				}
			}
		}
		result[c.Key] = list
	}
	return result
}

func scalar(v interface{}) string {
	switch s := v.(type) {
	case string:
		if s == "null" {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}
