package api

import (
	"text2phenotype.com/notex/pipeline"
	"github.com/kelseyhightower/envconfig"
	"net/http"
	"os"
)

type Config struct {
	Active       bool  `envconfig:"NOTEX_REST_API_ACTIVE" default:"false"`
	Port         int   `envconfig:"NOTEX_REST_API_PORT" default:"8000"`
	MaxBodyBytes int64 `envconfig:"NOTEX_REST_API_MAX_BODY_BYTES" default:"10485760"`
}

func LoadConfig() (Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	return config, err
}

// Server relays HTTP requests to the extraction service.
type Server struct {
	service          *pipeline.Service
	maxBodyBytes     int64
	apiKeyConfigured bool
}

const defaultMaxBodyBytes = 10 << 20

func NewServer(service *pipeline.Service, config Config) *Server {
	maxBodyBytes := config.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{
		service:          service,
		maxBodyBytes:     maxBodyBytes,
		apiKeyConfigured: os.Getenv("OPENAI_API_KEY") != "" || os.Getenv("GEMINI_API_KEY") != "",
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.Health)
	mux.HandleFunc("/api/models", s.ListModels)
	mux.HandleFunc("/api/extract", s.ExtractEntities)
	mux.HandleFunc("/api/extract-file", s.ExtractEntitiesFromFile)
	mux.HandleFunc("/api/uscdi/extract", s.ExtractUSCDI)
	mux.HandleFunc("/api/uscdi/extract-single", s.ExtractUSCDISingle)
	mux.HandleFunc("/api/uscdi/extract-file", s.ExtractUSCDIFromFile)
	mux.HandleFunc("/api/uscdi/extract-class", s.ExtractClass)
	mux.HandleFunc("/api/uscdi/data-classes", s.ListDataClasses)
	return mux
}
