package uscdi

import (
	"text2phenotype.com/notex/prompt"
	"text2phenotype.com/notex/types"
	"text2phenotype.com/notex/utils"
	"context"
	"fmt"
	"golang.org/x/sync/errgroup"
	"time"
)

// EnrichableClasses are the data classes whose records get concept identifiers.
var EnrichableClasses = []string{
	"problems", "medications", "allergies_and_intolerances", "procedures",
	"laboratory", "vital_signs", "diagnostic_imaging", "immunizations",
	"clinical_tests", "family_health_history",
}

// ConceptCache remembers resolved identifiers per (category, term).
type ConceptCache interface {
	Lookup(ctx context.Context, category, term string) (string, bool)
	Store(ctx context.Context, category, term, cui string)
}

const nullMarker = "null"

type enrichTask struct {
	class  string
	record types.Record
	term   string
	field  string
}

// Enrich attaches concept identifiers to the records of the enrichable classes
// in place. Each record is resolved independently; a failed lookup leaves its
// record untouched.
func (e *Extractor) Enrich(ctx context.Context, result types.Result, model string) {
	exLogger := e.exLogger.With().Str("model", model).Logger()
	tasks := e.collectTasks(result)
	if len(tasks) == 0 {
		exLogger.Debug().Msg("Nothing to enrich")
		return
	}

	started := time.Now()
	cuis := make([]string, len(tasks))
	var g errgroup.Group
	g.SetLimit(e.config.EnrichWorkers)
	for i := range tasks {
		g.Go(func() error {
			cuis[i] = e.resolve(ctx, model, tasks[i])
			return nil
		})
	}
	_ = g.Wait()

	attached := 0
	for i, task := range tasks {
		if cuis[i] == "" {
			continue
		}
		task.record[types.CUIField] = cuis[i]
		task.record[types.CUISourceField] = task.field
		attached++
	}
	exLogger.Info().
		Int("records", len(tasks)).
		Int("identified", attached).
		Dur("elapsed", time.Since(started)).
		Msg("Concept enrichment finished")
}

func (e *Extractor) collectTasks(result types.Result) []enrichTask {
	var tasks []enrichTask
	add := func(class string, record types.Record) {
		term, field, ok := PrimaryTerm(record)
		if !ok {
			e.exLogger.Debug().Str("data_class", class).Strs("fields", utils.SortedKeys(record)).Msg("No clinical term in record")
			return
		}
		tasks = append(tasks, enrichTask{class: class, record: record, term: term, field: field})
	}

	for _, class := range EnrichableClasses {
		switch value := result[class].(type) {
		case []interface{}:
			records := value
			if limit := e.config.MaxRecordsPerClass; limit > 0 && len(records) > limit {
				e.exLogger.Warn().
					Str("data_class", class).
					Int("records", len(records)).
					Int("limit", limit).
					Msg("Enrichment capped")
				records = records[:limit]
			}
			for _, item := range records {
				if record, ok := item.(map[string]interface{}); ok {
					add(class, record)
				}
			}
		case map[string]interface{}:
			add(class, value)
		}
	}
	return tasks
}

// resolve returns the identifier for one task, or "" when none was found.
func (e *Extractor) resolve(ctx context.Context, model string, task enrichTask) (cui string) {
	termLogger := e.exLogger.With().Str("data_class", task.class).Str("term", task.term).Logger()
	if e.cache != nil {
		if cached, ok := e.cache.Lookup(ctx, task.class, task.term); ok {
			return cached
		}
	}

	var err error
	defer func() {
		if err != nil {
			termLogger.Warn().Err(err).Msg("Concept lookup failed")
			cui = ""
		}
	}()
	defer utils.RecoverWithError(&err)

	var obj map[string]interface{}
	obj, err = e.gw.Call(ctx, model, prompt.ConceptSystemPrompt, prompt.ConceptUserPrompt(task.term, task.class))
	if err != nil {
		return ""
	}
	cui, err = conceptID(obj)
	if err != nil || cui == "" {
		return ""
	}
	if e.cache != nil {
		e.cache.Store(ctx, task.class, task.term, cui)
	}
	return cui
}

// conceptID reads {"cui": ...}. Absent, null or "null" mean no identifier.
func conceptID(obj map[string]interface{}) (string, error) {
	raw, ok := obj["cui"]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("cui has type %T, expected string", raw)
	}
	if s == "" || s == nullMarker {
		return "", nil
	}
	return s, nil
}
