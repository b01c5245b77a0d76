package query

import "strings"

// topicRule maps a question keyword onto a data category and health focus.
// Rules are checked in declaration order; the first hit wins.
type topicRule struct {
	keyword  string
	category string
	focus    string
}

var topicRules = []topicRule{
	{"cholesterol", "lab_results", "cardiovascular"},
	{"medication", "medications", "treatment"},
	{"blood pressure", "vitals", "cardiovascular"},
	{"hba1c", "lab_results", "diabetes"},
	{"glucose", "lab_results", "diabetes"},
}

// BuildMetrics classifies the question and summarizes the result set shape.
func BuildMetrics(question string, columns []string, results []map[string]interface{}) *DataMetrics {
	metrics := &DataMetrics{
		RowCount:     len(results),
		Columns:      columns,
		DataCategory: "general",
		HealthFocus:  "general",
	}

	q := strings.ToLower(question)
	for _, rule := range topicRules {
		if strings.Contains(q, rule.keyword) {
			metrics.DataCategory = rule.category
			metrics.HealthFocus = rule.focus
			break
		}
	}

	for _, col := range columns {
		if strings.Contains(strings.ToLower(col), "date") {
			metrics.HasDateData = true
			break
		}
	}

	if len(results) > 0 {
		for _, v := range results[0] {
			if isNumeric(v) {
				metrics.HasNumericData = true
				break
			}
		}
	}
	return metrics
}

func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}
