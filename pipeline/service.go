package pipeline

import (
	"text2phenotype.com/notex/conceptcache"
	"text2phenotype.com/notex/entities"
	"text2phenotype.com/notex/gateway"
	"text2phenotype.com/notex/logger"
	"text2phenotype.com/notex/types"
	"text2phenotype.com/notex/uscdi"
	"context"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"io"
	"strings"
)

type Config struct {
	SchemaPath   string `envconfig:"NOTEX_SCHEMA_PATH" default:"resources/uscdi_v6.yaml"`
	DefaultModel string `envconfig:"NOTEX_DEFAULT_MODEL" default:"gpt-4o"`
}

type Operation string

const (
	OperationEntities    Operation = "entities"
	OperationUSCDI       Operation = "uscdi"
	OperationUSCDISingle Operation = "uscdi_single"
	OperationUSCDIClass  Operation = "uscdi_class"
)

// Request is one extraction, independent of the surface it came from.
type Request struct {
	Tid       string
	Text      string
	Model     string
	Operation Operation
	DataClass string
	Enrich    bool
}

// Service is the inbound interface of the extractors. It is built once at
// startup and shared by the HTTP, queue and CLI surfaces.
type Service struct {
	schema       *types.Schema
	gw           gateway.Gateway
	uscdi        *uscdi.Extractor
	entities     *entities.Extractor
	closer       io.Closer
	defaultModel string
	svcLogger    zerolog.Logger
}

// New wires a service. gw may be nil, in which case every extraction fails
// with a ConfigurationError; cache may be nil.
func New(schema *types.Schema, gw gateway.Gateway, cache uscdi.ConceptCache, config uscdi.Config, defaultModel string) *Service {
	svc := &Service{
		schema:       schema,
		gw:           gw,
		defaultModel: defaultModel,
		svcLogger:    logger.NewLogger("Extraction service"),
	}
	if gw != nil {
		svc.uscdi = uscdi.NewExtractor(schema, gw, cache, config)
		svc.entities = entities.NewExtractor(gw)
	}
	if closer, ok := cache.(io.Closer); ok {
		svc.closer = closer
	}
	return svc
}

// FromEnvironment loads the schema and builds the gateway and concept cache
// from the environment. A missing model credential leaves the service up but
// not ready; a missing schema is fatal.
func FromEnvironment(ctx context.Context) (*Service, error) {
	svcLogger := logger.NewLogger("Extraction service")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, &types.ConfigurationError{What: "service environment", Cause: err}
	}
	schema, err := types.LoadSchema(config.SchemaPath)
	if err != nil {
		return nil, err
	}
	uscdiConfig, err := uscdi.LoadConfig()
	if err != nil {
		return nil, err
	}

	var gw gateway.Gateway
	client, err := gateway.New(ctx)
	switch {
	case err == nil:
		gw = client
	case types.IsConfigurationError(err):
		svcLogger.Error().Err(err).Msg("Model gateway not configured, extraction endpoints will be unavailable")
	default:
		return nil, err
	}

	var cache uscdi.ConceptCache
	conceptCache, err := conceptcache.FromEnvironment()
	if err != nil {
		svcLogger.Warn().Err(err).Msg("Concept cache disabled")
	} else {
		cache = conceptCache
	}
	return New(schema, gw, cache, uscdiConfig, config.DefaultModel), nil
}

func (s *Service) Ready() bool {
	return s.gw != nil
}

func (s *Service) SchemaVersion() string {
	return s.schema.Version
}

func (s *Service) DefaultModel() string {
	return s.defaultModel
}

func (s *Service) ListDataClasses() map[string]string {
	return s.schema.Descriptions()
}

func (s *Service) model(model string) string {
	if strings.TrimSpace(model) == "" {
		return s.defaultModel
	}
	return model
}

func (s *Service) checkReady(note string) error {
	if err := types.CheckNote(note); err != nil {
		return err
	}
	if !s.Ready() {
		return &types.ConfigurationError{What: "OpenAI API key not found, set OPENAI_API_KEY (or GEMINI_API_KEY)"}
	}
	return nil
}

func (s *Service) ExtractUSCDI(ctx context.Context, note, model string, enrich bool) (types.Result, error) {
	if err := s.checkReady(note); err != nil {
		return nil, err
	}
	return s.uscdi.Extract(ctx, note, s.model(model), enrich)
}

func (s *Service) ExtractUSCDISingle(ctx context.Context, note, model string) (types.Result, error) {
	if err := s.checkReady(note); err != nil {
		return nil, err
	}
	return s.uscdi.ExtractSingle(ctx, note, s.model(model))
}

func (s *Service) ExtractClass(ctx context.Context, note, className, model string) (map[string]interface{}, error) {
	if _, ok := s.schema.Class(className); !ok {
		return nil, &types.UnknownDataClassError{Name: className, Valid: s.schema.ClassNames()}
	}
	if err := s.checkReady(note); err != nil {
		return nil, err
	}
	return s.uscdi.ExtractClass(ctx, note, className, s.model(model))
}

func (s *Service) ExtractEntities(ctx context.Context, note, model string) (entities.Result, error) {
	if err := s.checkReady(note); err != nil {
		return nil, err
	}
	return s.entities.Extract(ctx, note, s.model(model))
}

// Run dispatches a request by operation and returns a JSON-encodable result.
func (s *Service) Run(ctx context.Context, request Request) (interface{}, error) {
	runLogger := s.svcLogger.With().
		Str("tid", request.Tid).
		Str("operation", string(request.Operation)).
		Str("model", s.model(request.Model)).
		Logger()
	runLogger.Info().Msg("Running extraction")
	var result interface{}
	var err error
	switch request.Operation {
	case OperationEntities:
		result, err = s.ExtractEntities(ctx, request.Text, request.Model)
	case OperationUSCDI, "":
		result, err = s.ExtractUSCDI(ctx, request.Text, request.Model, request.Enrich)
	case OperationUSCDISingle:
		result, err = s.ExtractUSCDISingle(ctx, request.Text, request.Model)
	case OperationUSCDIClass:
		result, err = s.ExtractClass(ctx, request.Text, request.DataClass, request.Model)
	default:
		err = fmt.Errorf("unknown operation %q", request.Operation)
	}
	if err != nil {
		runLogger.Err(err).Msg("Extraction failed")
		return nil, err
	}
	runLogger.Info().Msg("Finished extraction")
	return result, nil
}

// Format renders a Run result for a terminal.
func Format(result interface{}) string {
	switch r := result.(type) {
	case entities.Result:
		return entities.Format(r)
	case types.Result:
		return uscdi.FormatOutput(r)
	case map[string]interface{}:
		return uscdi.FormatOutput(types.Result(r))
	}
	return fmt.Sprintf("%v", result)
}

func (s *Service) Close() {
	if s.closer != nil {
		_ = s.closer.Close()
	}
}
