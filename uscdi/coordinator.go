package uscdi

import (
	"text2phenotype.com/notex/gateway"
	"text2phenotype.com/notex/logger"
	"text2phenotype.com/notex/prompt"
	"text2phenotype.com/notex/types"
	"text2phenotype.com/notex/utils"
	"context"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"strings"
	"time"
)

type Config struct {
	BatchWorkers       int `envconfig:"NOTEX_BATCH_WORKERS" default:"8"`
	EnrichWorkers      int `envconfig:"NOTEX_ENRICH_WORKERS" default:"8"`
	MaxRecordsPerClass int `envconfig:"NOTEX_ENRICH_MAX_RECORDS_PER_CLASS" default:"0"`
}

func DefaultConfig() Config {
	return Config{BatchWorkers: 8, EnrichWorkers: 8}
}

func LoadConfig() (Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return Config{}, &types.ConfigurationError{What: "uscdi environment", Cause: err}
	}
	return config, nil
}

// Extractor runs the USCDI extraction paths against one schema and gateway.
// It holds no per-request state and is safe for concurrent use.
type Extractor struct {
	schema   *types.Schema
	gw       gateway.Gateway
	cache    ConceptCache
	config   Config
	exLogger zerolog.Logger
}

// NewExtractor builds an extractor. cache may be nil.
func NewExtractor(schema *types.Schema, gw gateway.Gateway, cache ConceptCache, config Config) *Extractor {
	if config.BatchWorkers <= 0 {
		config.BatchWorkers = 1
	}
	if config.EnrichWorkers <= 0 {
		config.EnrichWorkers = 1
	}
	return &Extractor{
		schema:   schema,
		gw:       gw,
		cache:    cache,
		config:   config,
		exLogger: logger.NewLogger("USCDI extractor"),
	}
}

func (e *Extractor) Schema() *types.Schema {
	return e.schema
}

// ListDataClasses maps every data class name to its description.
func (e *Extractor) ListDataClasses() map[string]string {
	return e.schema.Descriptions()
}

type batchCall struct {
	group  Group
	system string
	user   string
}

// Extract runs one model call per batch group with bounded concurrency, merges
// the normalized results and optionally enriches them with concept
// identifiers. A failed group contributes nothing; only a rejected model or an
// unbuildable prompt is returned as an error.
func (e *Extractor) Extract(ctx context.Context, note, model string, enrich bool) (types.Result, error) {
	if err := types.CheckNote(note); err != nil {
		return nil, err
	}
	if checker, ok := e.gw.(gateway.ModelChecker); ok {
		if err := checker.CheckModel(model); err != nil {
			return nil, err
		}
	}
	exLogger := e.exLogger.With().Str("model", model).Logger()

	groups := PlanBatches(e.schema)
	calls := make([]batchCall, len(groups))
	for i, group := range groups {
		system, user, err := prompt.BuildGroupPrompts(e.schema, group, note)
		if err != nil {
			return nil, err
		}
		calls[i] = batchCall{group: group, system: system, user: user}
	}

	started := time.Now()
	// one slot per group; reduced after Wait so no worker touches shared state
	slots := make([]map[string]interface{}, len(calls))
	var g errgroup.Group
	g.SetLimit(e.config.BatchWorkers)
	for i := range calls {
		g.Go(func() error {
			slots[i] = e.extractGroup(ctx, exLogger, model, calls[i])
			return nil
		})
	}
	_ = g.Wait()

	result := mergeSlots(slots)
	exLogger.Info().
		Int("groups", len(groups)).
		Int("data_classes", len(result.DataClasses())).
		Dur("elapsed", time.Since(started)).
		Msg("Batch extraction finished")

	if enrich {
		e.Enrich(ctx, result, model)
	}
	result.Seal(e.schema.Version, model, types.MethodParallel, enrich)
	return result, nil
}

func (e *Extractor) extractGroup(ctx context.Context, exLogger zerolog.Logger, model string, call batchCall) (out map[string]interface{}) {
	groupLogger := exLogger.With().Str("group", strings.Join(call.group, ",")).Logger()
	var err error
	defer func() {
		if err != nil {
			groupLogger.Warn().Err(err).Msg("Batch group failed, continuing without it")
			out = nil
		}
	}()
	defer utils.RecoverWithError(&err)

	out, err = e.gw.Call(ctx, model, call.system, call.user)
	if err == nil {
		groupLogger.Debug().Int("keys", len(out)).Msg("Batch group extracted")
	}
	return out
}

// mergeSlots folds group results in group order; on a key collision the later
// group wins.
func mergeSlots(slots []map[string]interface{}) types.Result {
	result := make(types.Result)
	for _, slot := range slots {
		for _, key := range utils.SortedKeys(slot) {
			result[NormalizeKey(key)] = slot[key]
		}
	}
	return result
}
