package importer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Display labels used in the per-category breakdown. Conditions, procedures,
// allergies and immunizations are collapsed into one "Clinical Data" bucket.
const (
	labelLabResults   = "Lab Results"
	labelMedications  = "Medications"
	labelVitals       = "Vitals"
	labelClinicalData = "Clinical Data"
)

// medicationCutoff is the fixed date on or after which a medication record
// counts as "recent" in the key insights.
var medicationCutoff = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// QualityMetric reports one data-quality check: how many records out of a
// denominator satisfy it, with the ratio as a percentage rounded to one
// decimal place (0 when the denominator is 0).
type QualityMetric struct {
	Count      int     `json:"count"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// DataQuality holds the three fixed quality checks computed per import run.
type DataQuality struct {
	LabResultsWithRanges  QualityMetric `json:"lab_results_with_ranges"`
	MedicationsWithStatus QualityMetric `json:"medications_with_status"`
	RecordsWithDates      QualityMetric `json:"records_with_dates"`
}

// Statistics is the full per-run statistics payload persisted on the import
// row and returned to the caller.
type Statistics struct {
	TotalRecords      int            `json:"total_records"`
	RecordsByCategory map[string]int `json:"records_by_category"`
	TimelineCoverage  map[int]int    `json:"timeline_coverage"`
	DataQuality       DataQuality    `json:"data_quality"`
	KeyInsights       []string       `json:"key_insights"`
	SourceFiles       []string       `json:"source_files"`
}

// CalculateStatistics computes the statistics payload for one import run from
// its full record set and contributing file names. Pure function.
func CalculateStatistics(records []*HealthRecord, sourceFiles []string) *Statistics {
	recordsByCategory := make(map[string]int)
	for _, rec := range records {
		recordsByCategory[displayLabel(rec.Category)]++
	}

	// Records per calendar year, remembering first-encountered year order so
	// insight ties resolve deterministically.
	timeline := make(map[int]int)
	var yearOrder []int
	for _, rec := range records {
		if rec.RecordDate == nil {
			continue
		}
		year := rec.RecordDate.Year()
		if _, seen := timeline[year]; !seen {
			yearOrder = append(yearOrder, year)
		}
		timeline[year]++
	}

	var labRecords, medRecords []*HealthRecord
	for _, rec := range records {
		switch rec.Category {
		case CategoryLab:
			labRecords = append(labRecords, rec)
		case CategoryMedication:
			medRecords = append(medRecords, rec)
		}
	}

	labWithRanges := 0
	for _, rec := range labRecords {
		if rec.ReferenceRange != nil {
			labWithRanges++
		}
	}
	medWithStatus := 0
	for _, rec := range medRecords {
		if rec.MedicationStatus != nil {
			medWithStatus++
		}
	}
	recordsWithDates := 0
	for _, rec := range records {
		if rec.RecordDate != nil {
			recordsWithDates++
		}
	}

	return &Statistics{
		TotalRecords:      len(records),
		RecordsByCategory: recordsByCategory,
		TimelineCoverage:  timeline,
		DataQuality: DataQuality{
			LabResultsWithRanges:  qualityMetric(labWithRanges, len(labRecords)),
			MedicationsWithStatus: qualityMetric(medWithStatus, len(medRecords)),
			RecordsWithDates:      qualityMetric(recordsWithDates, len(records)),
		},
		KeyInsights: keyInsights(labRecords, medRecords, timeline, yearOrder),
		SourceFiles: sourceFiles,
	}
}

func displayLabel(category string) string {
	switch category {
	case CategoryLab:
		return labelLabResults
	case CategoryMedication:
		return labelMedications
	case CategoryVital:
		return labelVitals
	default:
		return labelClinicalData
	}
}

func qualityMetric(count, total int) QualityMetric {
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(count)/float64(total)*1000) / 10
	}
	return QualityMetric{Count: count, Total: total, Percentage: pct}
}

// keyInsights produces the fixed, ordered insight strings: most recent lab
// date, recent medication count, the two best-covered years, and the distinct
// lab test count.
func keyInsights(labRecords, medRecords []*HealthRecord, timeline map[int]int, yearOrder []int) []string {
	var insights []string

	var mostRecentLab *time.Time
	for _, rec := range labRecords {
		if rec.RecordDate == nil {
			continue
		}
		if mostRecentLab == nil || rec.RecordDate.After(*mostRecentLab) {
			mostRecentLab = rec.RecordDate
		}
	}
	if mostRecentLab != nil {
		insights = append(insights, fmt.Sprintf("Most recent lab test: %s", mostRecentLab.Format("2006-01-02")))
	}

	recentMeds := 0
	for _, rec := range medRecords {
		if rec.RecordDate != nil && !rec.RecordDate.Before(medicationCutoff) {
			recentMeds++
		}
	}
	insights = append(insights, fmt.Sprintf("Recent medications: %d", recentMeds))

	if len(timeline) > 0 {
		years := make([]int, len(yearOrder))
		copy(years, yearOrder)
		// Stable sort keeps first-encountered order between tied years.
		sort.SliceStable(years, func(i, j int) bool {
			return timeline[years[i]] > timeline[years[j]]
		})
		if len(years) > 2 {
			years = years[:2]
		}
		parts := make([]string, len(years))
		for i, y := range years {
			parts[i] = strconv.Itoa(y)
		}
		insights = append(insights, fmt.Sprintf("Years with most complete data: %s", strings.Join(parts, ", ")))
	}

	uniqueTests := make(map[string]struct{})
	for _, rec := range labRecords {
		if rec.ItemDescription != "" {
			uniqueTests[rec.ItemDescription] = struct{}{}
		}
	}
	insights = append(insights, fmt.Sprintf("Total unique lab tests tracked: %d", len(uniqueTests)))

	return insights
}
