package api

import (
	"text2phenotype.com/notex/entities"
	"text2phenotype.com/notex/pipeline"
	"text2phenotype.com/notex/types"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

type extractionRequest struct {
	MedicalNote string `json:"medical_note"`
	Model       string `json:"model"`
	Enrich      *bool  `json:"enrich"`
}

type entitiesResponse struct {
	Success       bool            `json:"success"`
	Entities      entities.Result `json:"entities"`
	TotalEntities int             `json:"total_entities"`
	OriginalText  string          `json:"original_text,omitempty"`
}

type uscdiResponse struct {
	Success          bool         `json:"success"`
	USCDIData        types.Result `json:"uscdi_data"`
	DataClassesCount int          `json:"data_classes_count"`
	OriginalText     string       `json:"original_text,omitempty"`
}

type classResponse struct {
	Success   bool                   `json:"success"`
	DataClass string                 `json:"data_class"`
	Data      map[string]interface{} `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// requestError marks a malformed request body or upload.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

var uploadExtensions = map[string]bool{".txt": true, ".text": true}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, map[string]interface{}{
		"status":                "healthy",
		"extractor_initialized": s.service.Ready(),
		"api_key_configured":    s.apiKeyConfigured,
	})
}

func (s *Server) ListModels(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, map[string]interface{}{"models": pipeline.Models})
}

func (s *Server) ListDataClasses(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodGet)
	if !ok {
		return
	}
	classes := s.service.ListDataClasses()
	writeJSON(w, &reqLogger, http.StatusOK, map[string]interface{}{
		"uscdi_version": strings.TrimPrefix(s.service.SchemaVersion(), "USCDI "),
		"data_classes":  classes,
		"total_classes": len(classes),
	})
}

func (s *Server) ExtractEntities(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	var req extractionRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	s.relayEntities(w, r, &reqLogger, req.MedicalNote, req.Model, false)
}

func (s *Server) ExtractEntitiesFromFile(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	note, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	s.relayEntities(w, r, &reqLogger, note, r.URL.Query().Get("model"), true)
}

func (s *Server) relayEntities(w http.ResponseWriter, r *http.Request, reqLogger *zerolog.Logger, note, model string, echo bool) {
	result, err := s.service.ExtractEntities(r.Context(), note, model)
	if err != nil {
		writeError(w, reqLogger, err)
		return
	}
	resp := entitiesResponse{Success: true, Entities: result, TotalEntities: result.Total()}
	if echo {
		resp.OriginalText = note
	}
	reqLogger.Info().Int("total_entities", resp.TotalEntities).Msg("Extracted entities")
	writeJSON(w, reqLogger, http.StatusOK, resp)
}

func (s *Server) ExtractUSCDI(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	var req extractionRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	enrich := req.Enrich == nil || *req.Enrich
	result, err := s.service.ExtractUSCDI(r.Context(), req.MedicalNote, req.Model, enrich)
	if err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	count := len(result.DataClasses())
	reqLogger.Info().Int("data_classes_count", count).Bool("enrich", enrich).Msg("Extracted USCDI data")
	writeJSON(w, &reqLogger, http.StatusOK, uscdiResponse{Success: true, USCDIData: result, DataClassesCount: count})
}

func (s *Server) ExtractUSCDISingle(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	var req extractionRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	result, err := s.service.ExtractUSCDISingle(r.Context(), req.MedicalNote, req.Model)
	if err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, uscdiResponse{
		Success:          true,
		USCDIData:        result,
		DataClassesCount: len(result.DataClasses()),
	})
}

func (s *Server) ExtractUSCDIFromFile(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	note, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	result, err := s.service.ExtractUSCDI(r.Context(), note, r.URL.Query().Get("model"), true)
	if err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, uscdiResponse{
		Success:          true,
		USCDIData:        result,
		DataClassesCount: populatedClasses(result),
		OriginalText:     note,
	})
}

func (s *Server) ExtractClass(w http.ResponseWriter, r *http.Request) {
	reqLogger, ok := s.begin(w, r, http.MethodPost)
	if !ok {
		return
	}
	dataClass := r.URL.Query().Get("data_class")
	if dataClass == "" {
		writeError(w, &reqLogger, &requestError{"data_class query parameter is required"})
		return
	}
	var req extractionRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	data, err := s.service.ExtractClass(r.Context(), req.MedicalNote, dataClass, req.Model)
	if err != nil {
		writeError(w, &reqLogger, err)
		return
	}
	writeJSON(w, &reqLogger, http.StatusOK, classResponse{Success: true, DataClass: dataClass, Data: data})
}

// begin tags the request with a tid and enforces the method.
func (s *Server) begin(w http.ResponseWriter, r *http.Request, method string) (zerolog.Logger, bool) {
	w.Header().Set("Content-Type", "application/json")
	tid := uuid.NewString()
	w.Header().Set("X-Request-Id", tid)
	reqLogger := makeRequestLogger(r, tid)
	if r.Method != method {
		w.Header().Set("Allow", method)
		reqLogger.Warn().Int("status", http.StatusMethodNotAllowed).Msgf("Only '%s' method is allowed here", method)
		writeJSON(w, &reqLogger, http.StatusMethodNotAllowed, errorResponse{
			Error: fmt.Sprintf("method %s not allowed", r.Method),
		})
		return reqLogger, false
	}
	return reqLogger, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, req *extractionRequest) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(req); err != nil {
		return &requestError{fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", &requestError{fmt.Sprintf("file upload is required: %v", err)}
	}
	defer file.Close()
	if !uploadExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		return "", &requestError{"only .txt and .text files are supported"}
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return "", &requestError{fmt.Sprintf("could not read upload: %v", err)}
	}
	if !utf8.Valid(content) {
		return "", &requestError{"file must be valid UTF-8 encoded text"}
	}
	return string(content), nil
}

// populatedClasses counts classes holding at least one record or a non-blank value.
func populatedClasses(result types.Result) int {
	count := 0
	for _, name := range result.DataClasses() {
		switch v := result[name].(type) {
		case []interface{}:
			if len(v) > 0 {
				count++
			}
		case map[string]interface{}:
			if len(v) > 0 {
				count++
			}
		case string:
			if strings.TrimSpace(v) != "" {
				count++
			}
		}
	}
	return count
}

func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case types.IsConfigurationError(err):
		return http.StatusServiceUnavailable
	case types.IsClientError(err), errors.As(err, &reqErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, reqLogger *zerolog.Logger, err error) {
	status := statusFor(err)
	reqLogger.Err(err).Int("status", status).Msg("Request failed")
	writeJSON(w, reqLogger, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, reqLogger *zerolog.Logger, status int, payload interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		reqLogger.Err(err).Msg("Could not write response")
	}
}
