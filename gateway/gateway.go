package gateway

import (
	"text2phenotype.com/notex/logger"
	"text2phenotype.com/notex/types"
	"context"
	"encoding/json"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"strings"
	"time"
)

// Gateway issues one blocking model call and returns the parsed JSON object.
// Every failure is a *types.ModelCallError.
type Gateway interface {
	Call(ctx context.Context, model, systemPrompt, userPrompt string) (map[string]interface{}, error)
}

// ModelChecker is implemented by gateways that can reject a model before any
// call is made.
type ModelChecker interface {
	CheckModel(model string) error
}

// Func adapts a plain function to Gateway.
type Func func(ctx context.Context, model, systemPrompt, userPrompt string) (map[string]interface{}, error)

func (f Func) Call(ctx context.Context, model, systemPrompt, userPrompt string) (map[string]interface{}, error) {
	return f(ctx, model, systemPrompt, userPrompt)
}

const DefaultTemperature = 0.1

// reasoning model families reject any temperature but their default
var defaultTemperatureModels = []string{"o1", "o1-mini", "o1-preview", "o3", "o3-mini", "o4-mini", "gpt-5"}

// Temperature returns the sampling temperature to send for model, or nil when
// the parameter must be omitted.
func Temperature(model string) *float64 {
	lower := strings.ToLower(model)
	for _, fragment := range defaultTemperatureModels {
		if strings.Contains(lower, fragment) {
			return nil
		}
	}
	t := DefaultTemperature
	return &t
}

type Config struct {
	OpenAIAPIKey       string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL      string  `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	GeminiAPIKey       string  `envconfig:"GEMINI_API_KEY"`
	CallTimeoutSeconds int     `envconfig:"NOTEX_LLM_CALL_TIMEOUT_SECONDS" default:"300"`
	RPS                float64 `envconfig:"NOTEX_LLM_RPS" default:"0"`
	Burst              int     `envconfig:"NOTEX_LLM_BURST" default:"1"`
}

type completion struct {
	Model       string
	System      string
	User        string
	Temperature *float64
}

type backend interface {
	complete(ctx context.Context, req completion) (string, error)
}

type Client struct {
	config   Config
	openai   backend
	gemini   backend
	limiter  *rate.Limiter
	timeout  time.Duration
	gwLogger zerolog.Logger
}

func New(ctx context.Context) (*Client, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, &types.ConfigurationError{What: "model gateway environment", Cause: err}
	}
	return NewFromConfig(ctx, config)
}

func NewFromConfig(ctx context.Context, config Config) (*Client, error) {
	gwLogger := logger.NewLogger("Model gateway")
	if config.OpenAIAPIKey == "" && config.GeminiAPIKey == "" {
		return nil, &types.ConfigurationError{What: "OpenAI API key not found, set OPENAI_API_KEY (or GEMINI_API_KEY)"}
	}
	client := &Client{
		config:   config,
		timeout:  time.Duration(config.CallTimeoutSeconds) * time.Second,
		gwLogger: gwLogger,
	}
	if config.OpenAIAPIKey != "" {
		client.openai = newOpenAIBackend(config.OpenAIBaseURL, config.OpenAIAPIKey, client.timeout)
	}
	if config.GeminiAPIKey != "" {
		gemini, err := newGeminiBackend(ctx, config.GeminiAPIKey)
		if err != nil {
			return nil, &types.ConfigurationError{What: "gemini client", Cause: err}
		}
		client.gemini = gemini
	}
	if config.RPS > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(config.RPS), burst)
	}
	gwLogger.Info().
		Bool("openai", client.openai != nil).
		Bool("gemini", client.gemini != nil).
		Dur("call_timeout", client.timeout).
		Float64("rps", config.RPS).
		Msg("Model gateway configured")
	return client, nil
}

func (c *Client) CheckModel(model string) error {
	_, err := c.backendFor(model)
	return err
}

func (c *Client) Call(ctx context.Context, model, systemPrompt, userPrompt string) (map[string]interface{}, error) {
	b, err := c.backendFor(model)
	if err != nil {
		return nil, &types.ModelCallError{Model: model, Cause: err}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &types.ModelCallError{Model: model, Cause: err}
		}
	}
	started := time.Now()
	text, err := b.complete(ctx, completion{
		Model:       model,
		System:      systemPrompt,
		User:        userPrompt,
		Temperature: Temperature(model),
	})
	callLogger := c.gwLogger.With().Str("model", model).Dur("elapsed", time.Since(started)).Logger()
	if err != nil {
		callLogger.Debug().Err(err).Msg("Model call failed")
		return nil, &types.ModelCallError{Model: model, Cause: err}
	}
	obj, err := Decode(text)
	if err != nil {
		callLogger.Debug().Err(err).Int("bytes", len(text)).Msg("Model returned unusable body")
		return nil, &types.ModelCallError{Model: model, Cause: err}
	}
	callLogger.Debug().Int("bytes", len(text)).Msg("Model call finished")
	return obj, nil
}

func (c *Client) backendFor(model string) (backend, error) {
	if strings.TrimSpace(model) == "" {
		return nil, &types.ConfigurationError{What: "model identifier is empty"}
	}
	if isGemini(model) {
		if c.gemini == nil {
			return nil, &types.ConfigurationError{What: fmt.Sprintf("model %q needs GEMINI_API_KEY", model)}
		}
		return c.gemini, nil
	}
	if c.openai == nil {
		return nil, &types.ConfigurationError{What: fmt.Sprintf("model %q needs OPENAI_API_KEY", model)}
	}
	return c.openai, nil
}

func isGemini(model string) bool {
	lower := strings.ToLower(model)
	return strings.HasPrefix(lower, "gemini") || strings.HasPrefix(lower, "models/gemini")
}

// Decode parses a model body that must be a JSON object.
func Decode(text string) (map[string]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON from model: %w", err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, types.ErrNotJSONObject
	}
	return obj, nil
}
