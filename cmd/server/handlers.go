package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/liamcoop/eligibility/artifacts"
	"github.com/liamcoop/eligibility/csvbatch"
	"github.com/liamcoop/eligibility/internal/logger"
	"github.com/liamcoop/eligibility/prediction"
)

const (
	maxJSONBody = 1 << 20  // 1MB
	maxCSVBody  = 10 << 20 // 10MB
)

var errNotObject = errors.New("patient must be a JSON object")

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: serviceName,
		Version: version,
		Model:   s.bundle.Describe(),
	})
}

// Single prediction handler. Accepts a JSON object or form fields.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	record, err := prediction.ParseRecord(fields)
	if err != nil {
		respondPredictionError(w, err)
		return
	}

	result, err := s.service.Predict(record)
	if err != nil {
		respondPredictionError(w, err)
		return
	}
	logger.CountPredictions(1)

	respondJSON(w, http.StatusOK, PredictResponse{
		PredictionResult: *result,
		PredictionText:   result.Text(),
		PatientInfo:      newPatientInfo(record),
	})
}

// Batch prediction handler. Each patient is scored independently.
func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Patients == nil {
		respondError(w, http.StatusBadRequest, "patients is required", nil)
		return
	}
	patients := *req.Patients
	if len(patients) > s.cfg.MaxBatchSize {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("batch of %d patients exceeds the limit of %d", len(patients), s.cfg.MaxBatchSize), nil)
		return
	}

	// Non-object entries fail in place; the rest are scored together
	outcomes := make([]prediction.Outcome, len(patients))
	batch := make([]prediction.Fields, 0, len(patients))
	positions := make([]int, 0, len(patients))
	for i, p := range patients {
		obj, ok := p.(map[string]any)
		if !ok {
			outcomes[i] = prediction.Outcome{Err: errNotObject}
			continue
		}
		batch = append(batch, prediction.Fields(obj))
		positions = append(positions, i)
	}
	for j, o := range s.service.PredictBatch(batch) {
		outcomes[positions[j]] = o
	}

	s.countOutcomes(outcomes)
	respondJSON(w, http.StatusOK, newBatchResponse(outcomes))
}

// CSV upload handler. Returns JSON unless the client asks for text/csv.
func (s *Server) handlePredictCSV(w http.ResponseWriter, r *http.Request) {
	body, closeBody, err := csvBody(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid upload", err)
		return
	}
	defer closeBody()

	table, err := csvbatch.Read(body, s.cfg.MaxBatchSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	outcomes := s.service.PredictBatch(table.Records)
	s.countOutcomes(outcomes)

	if wantsCSV(r) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="predictions.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := csvbatch.Write(w, table, outcomes); err != nil {
			logger.Error("Failed to write csv response", "error", err)
		}
		return
	}
	respondJSON(w, http.StatusOK, newBatchResponse(outcomes))
}

// Model information handler
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.info())
}

// Metrics handler exposing the logger counters
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, logger.Snapshot())
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "endpoint not found", nil)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), nil)
}

// info prefers the metadata artifact and falls back to the constraint table
func (s *Server) info() InfoResponse {
	docs := s.bundle.Documents
	resp := InfoResponse{
		ModelType:    docs.Model.ModelType,
		Bundle:       s.bundle.Describe(),
		FeatureNames: docs.Features,
		Coefficients: s.bundle.Classifier.Coefficients,
		Intercept:    s.bundle.Classifier.Intercept,
	}

	if md := docs.Metadata; md != nil {
		if md.ModelType != "" {
			resp.ModelType = md.ModelType
		}
		resp.Algorithm = md.Algorithm
		resp.Version = md.Version
		resp.Description = md.Description
		resp.Features = md.Features
		resp.Performance = md.Performance
		if len(md.Coefficients) > 0 {
			resp.Coefficients = md.Coefficients
		}
		if md.Intercept != nil {
			resp.Intercept = *md.Intercept
		}
	}

	if len(resp.Features) == 0 {
		resp.Features = make([]artifacts.FeatureInfo, 0, len(s.constraints))
		for _, c := range s.constraints {
			info := artifacts.FeatureInfo{Name: c.Field, Description: c.Message}
			switch {
			case c.Range != nil:
				info.Type = "numeric"
				info.Range = []float64{c.Range.Min, c.Range.Max}
			case len(c.Allowed) > 0:
				info.Type = "categorical"
				info.Values = c.Allowed
			}
			resp.Features = append(resp.Features, info)
		}
	}
	return resp
}

func (s *Server) countOutcomes(outcomes []prediction.Outcome) {
	scored := 0
	for _, o := range outcomes {
		if o.Err == nil {
			scored++
		}
	}
	logger.CountPredictions(scored)
}

// decodeFields reads a single record from a JSON object or form body
func decodeFields(w http.ResponseWriter, r *http.Request) (prediction.Fields, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(maxJSONBody); err != nil {
				return nil, err
			}
		} else if err := r.ParseForm(); err != nil {
			return nil, err
		}
		fields := make(prediction.Fields, len(prediction.RequiredFields()))
		for _, name := range prediction.RequiredFields() {
			if values, ok := r.PostForm[name]; ok && len(values) > 0 {
				fields[name] = values[0]
			}
		}
		return fields, nil

	default:
		var payload any
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
		decoder.UseNumber()
		if err := decoder.Decode(&payload); err != nil {
			return nil, err
		}
		obj, ok := payload.(map[string]any)
		if !ok {
			return nil, errors.New("request body must be a JSON object")
		}
		return prediction.Fields(obj), nil
	}
}

// csvBody returns the upload from a multipart "file" part or the raw body
func csvBody(w http.ResponseWriter, r *http.Request) (io.Reader, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVBody)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		return r.Body, func() {}, nil
	}

	if err := r.ParseMultipartForm(maxCSVBody); err != nil {
		return nil, nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("file part is required: %w", err)
	}
	return file, func() { file.Close() }, nil
}

func wantsCSV(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

// respondPredictionError maps user errors to 400 and everything else to 500
func respondPredictionError(w http.ResponseWriter, err error) {
	if prediction.IsUserError(err) {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	// requestLogger counts the 5xx
	logger.Logger.Error("Prediction failed", "error", err)
	respondError(w, http.StatusInternalServerError, "prediction failed", err)
}
