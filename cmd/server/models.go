package main

import (
	"strings"

	"github.com/liamcoop/eligibility/artifacts"
	"github.com/liamcoop/eligibility/prediction"
)

// API request and response models

// PredictResponse is the single-prediction response: the result fields
// flattened, plus the display text and the normalized input echo.
type PredictResponse struct {
	prediction.PredictionResult
	PredictionText string      `json:"prediction_text" example:"ELIGIBLE"`
	PatientInfo    PatientInfo `json:"patient_info"`
}

// PatientInfo echoes the input after coercion
type PatientInfo struct {
	Age          float64 `json:"age" example:"45"`
	Gender       string  `json:"gender" example:"Male"`
	ICDFrequency int     `json:"icd_frequency" example:"15"`
	CPTFrequency int     `json:"cpt_frequency" example:"8"`
	Month        int     `json:"month" example:"6"`
}

func newPatientInfo(record prediction.PatientRecord) PatientInfo {
	gender := strings.ToLower(strings.TrimSpace(record.Gender))
	if gender != "" {
		gender = strings.ToUpper(gender[:1]) + gender[1:]
	}
	return PatientInfo{
		Age:          record.Age,
		Gender:       gender,
		ICDFrequency: record.ICDFrequency,
		CPTFrequency: record.CPTFrequency,
		Month:        record.Month,
	}
}

// BatchRequest is the body of predict-batch
type BatchRequest struct {
	Patients *[]any `json:"patients"`
}

// BatchItem is one position of a batch response: either the result or an error
type BatchItem struct {
	*prediction.PredictionResult
	Error string `json:"error,omitempty" example:"invalid age: must be between 1 and 120, got 150"`
}

// BatchResponse represents the response for batch and CSV scoring
type BatchResponse struct {
	Results []BatchItem `json:"results"`
	Total   int         `json:"total" example:"2"`
}

func newBatchResponse(outcomes []prediction.Outcome) BatchResponse {
	items := make([]BatchItem, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			items[i] = BatchItem{Error: o.Err.Error()}
			continue
		}
		items[i] = BatchItem{PredictionResult: o.Result}
	}
	return BatchResponse{Results: items, Total: len(items)}
}

// InfoResponse describes the loaded model
type InfoResponse struct {
	ModelType    string                  `json:"model_type" example:"LogisticRegression"`
	Algorithm    string                  `json:"algorithm,omitempty" example:"Logistic Regression with MinMax scaling"`
	Version      string                  `json:"version,omitempty" example:"1.0.0"`
	Description  string                  `json:"description,omitempty"`
	Bundle       string                  `json:"bundle"`
	FeatureNames []string                `json:"feature_names"`
	Features     []artifacts.FeatureInfo `json:"features"`
	Coefficients []float64               `json:"coefficients"`
	Intercept    float64                 `json:"intercept"`
	Performance  *artifacts.Performance  `json:"performance,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"missing required fields: month"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status" example:"healthy"`
	Service string `json:"service" example:"insurance-eligibility"`
	Version string `json:"version" example:"1.0.0"`
	Model   string `json:"model" example:"LogisticRegression from models"`
}
