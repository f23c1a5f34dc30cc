package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"churn-predictor/internal/features"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

// PredictResponse is the JSON body of a successful prediction.
type PredictResponse struct {
	Prediction int       `json:"prediction"`
	Votes      []float64 `json:"votes"`
	Classes    []int     `json:"classes"`
}

// ErrorResponse is the JSON body of a failed request. Field and Kind are set
// for input validation failures.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

type formField struct {
	Key         string
	Name        string
	Categorical bool
	Value       string
}

type pageData struct {
	Fields        []formField
	Error         string
	HasPrediction bool
	Prediction    int
	Churn         bool
}

func newPageData(values map[string]string) pageData {
	schema := features.Schema()
	data := pageData{Fields: make([]formField, len(schema))}
	for i, f := range schema {
		value := values[f.Key]
		if f.Kind == features.Categorical {
			value = strings.ToLower(strings.TrimSpace(value))
		}
		data.Fields[i] = formField{
			Key:         f.Key,
			Name:        f.Name,
			Categorical: f.Kind == features.Categorical,
			Value:       value,
		}
	}
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, http.StatusOK, newPageData(nil))
}

func (s *Server) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		status := http.StatusBadRequest
		if isTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		data := newPageData(nil)
		data.Error = "could not read form"
		s.renderPage(w, status, data)
		return
	}

	fields := features.FieldsFromForm(r.PostForm)
	data := newPageData(fields)

	pred, err := s.predictor.Evaluate(fields)
	switch {
	case err == nil:
		data.HasPrediction = true
		data.Prediction = pred.Class
		data.Churn = pred.Class == 1
		s.renderPage(w, http.StatusOK, data)
	case features.IsValidationError(err):
		data.Error = err.Error()
		s.renderPage(w, http.StatusBadRequest, data)
	default:
		data.Error = "prediction failed"
		s.renderPage(w, http.StatusInternalServerError, data)
	}
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		if isTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "could not read request body"})
		return
	}

	status, resp := s.predictJSON(body)
	writeJSON(w, status, resp)
}

// predictJSON runs one JSON-encoded request and returns the status and body
// to send back. It is shared by the API endpoint and the stream.
func (s *Server) predictJSON(body []byte) (int, interface{}) {
	fields, err := fieldsFromJSON(body)
	if err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}

	pred, err := s.predictor.Evaluate(fields)
	if err != nil {
		if fe, ok := features.AsFieldError(err); ok {
			return http.StatusBadRequest, ErrorResponse{
				Error: fe.Error(),
				Field: fe.Field,
				Kind:  fe.Kind.String(),
			}
		}
		return http.StatusInternalServerError, ErrorResponse{Error: "prediction failed"}
	}

	return http.StatusOK, PredictResponse{
		Prediction: pred.Class,
		Votes:      pred.Votes,
		Classes:    s.classes,
	}
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.predictor.Info())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
