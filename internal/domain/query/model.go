package query

import (
	"errors"
	"fmt"
)

// ErrNoSQL is returned when the translation service answered but no SQL
// statement could be extracted from any recognized envelope shape.
var ErrNoSQL = errors.New("no SQL statement in translation response")

// TranslationError reports a non-2xx response from the translation service
// with enough of the body to diagnose it.
type TranslationError struct {
	Status int
	Body   string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation service returned %d: %s", e.Status, e.Body)
}

// DataMetrics summarizes the shape of a result set plus a keyword-derived
// topic classification of the question.
type DataMetrics struct {
	RowCount       int      `json:"row_count"`
	Columns        []string `json:"columns"`
	HasDateData    bool     `json:"has_date_data"`
	HasNumericData bool     `json:"has_numeric_data"`
	DataCategory   string   `json:"data_category"`
	HealthFocus    string   `json:"health_focus"`
}

// Outcome is the uniform result shape of a natural-language query. Failures
// are reported inside it rather than as errors, mirroring the import result.
type Outcome struct {
	Query           string                   `json:"query"`
	Interpretation  string                   `json:"interpretation,omitempty"`
	SQL             string                   `json:"sql,omitempty"`
	Results         []map[string]interface{} `json:"results,omitempty"`
	ResultCount     int                      `json:"result_count"`
	DataMetrics     *DataMetrics             `json:"data_metrics,omitempty"`
	QuerySuccessful bool                     `json:"query_successful"`
	Error           string                   `json:"error,omitempty"`
	ErrorDetails    string                   `json:"error_details,omitempty"`
	ExecutionTime   float64                  `json:"execution_time"`
	Warnings        []string                 `json:"warnings,omitempty"`
}
