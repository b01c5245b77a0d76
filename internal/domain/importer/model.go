package importer

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record categories. Lab, medication and vital records each come from their
// own export file; the remaining categories share the consolidated clinical
// data file.
const (
	CategoryLab          = "LAB"
	CategoryMedication   = "MEDICATION"
	CategoryVital        = "VITAL"
	CategoryCondition    = "CONDITION"
	CategoryProcedure    = "PROCEDURE"
	CategoryAllergy      = "ALLERGY"
	CategoryImmunization = "IMMUNIZATION"
)

// Import run statuses.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

const unknownProvider = "Unknown Provider"

var (
	// ErrNoSourceFiles is returned when a directory contains none of the
	// recognized health data export files.
	ErrNoSourceFiles = errors.New("no health data JSON files found")

	// ErrMissingPatientInfo is returned when no source file header yields
	// both a patient identity and a parseable date of birth.
	ErrMissingPatientInfo = errors.New("could not extract patient information from header_fields")
)

// Patient maps to the PATIENTS table. A new row is created for every import
// run; there is deliberately no lookup-by-identity dedup step.
type Patient struct {
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Identity    string     `db:"patient_identity" json:"patient_identity"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Age         *int       `db:"patient_age" json:"patient_age,omitempty"`
}

// ImportRun maps to the IMPORTS table. Created IN_PROGRESS at the start of an
// import and transitioned exactly once, to COMPLETED with final statistics or
// to FAILED with a reason.
type ImportRun struct {
	ImportID      uuid.UUID   `db:"import_id" json:"import_id"`
	PatientID     uuid.UUID   `db:"patient_id" json:"patient_id"`
	SourceFiles   []string    `db:"source_files" json:"source_files"`
	Status        string      `db:"import_status" json:"import_status"`
	TotalRecords  int         `db:"total_records" json:"total_records"`
	Statistics    *Statistics `db:"import_statistics" json:"import_statistics,omitempty"`
	FailureReason *string     `db:"failure_reason" json:"failure_reason,omitempty"`
}

// HealthRecord is the canonical row shape all category-specific inputs are
// mapped into. Immutable once created; written in bulk once per import.
type HealthRecord struct {
	RecordID             uuid.UUID  `db:"record_id" json:"record_id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	ImportID             uuid.UUID  `db:"import_id" json:"import_id"`
	Category             string     `db:"record_category" json:"record_category"`
	RecordDate           *time.Time `db:"record_date" json:"record_date,omitempty"`
	Provider             string     `db:"provider" json:"provider"`
	ItemDescription      string     `db:"item_description" json:"item_description"`
	ValueText            *string    `db:"value_text" json:"value_text,omitempty"`
	ValueNumeric         *float64   `db:"value_numeric" json:"value_numeric,omitempty"`
	MeasurementDimension *string    `db:"measurement_dimension" json:"measurement_dimension,omitempty"`
	ReferenceRange       *string    `db:"reference_range" json:"reference_range,omitempty"`
	Flag                 *string    `db:"flag" json:"flag,omitempty"`
	TestCategory         *string    `db:"test_category" json:"test_category,omitempty"`
	Dosage               *string    `db:"dosage" json:"dosage,omitempty"`
	Form                 *string    `db:"form" json:"form,omitempty"`
	ForCondition         *string    `db:"for_condition" json:"for_condition,omitempty"`
	Frequency            *string    `db:"frequency" json:"frequency,omitempty"`
	MedicationStatus     *string    `db:"medication_status" json:"medication_status,omitempty"`
	VitalCategory        *string    `db:"vital_category" json:"vital_category,omitempty"`
	ConditionStatus      *string    `db:"condition_status" json:"condition_status,omitempty"`
	VaccineCategory      *string    `db:"vaccine_category" json:"vaccine_category,omitempty"`
	ProcedureCategory    *string    `db:"procedure_category" json:"procedure_category,omitempty"`
	AllergyCategory      *string    `db:"allergy_category" json:"allergy_category,omitempty"`
	SourceFile           string     `db:"source_file" json:"source_file"`
}

// PatientInfo is the demographic snapshot read from a source file header.
type PatientInfo struct {
	Identity    string
	DateOfBirth *time.Time
	Age         *int
	ReportDate  *time.Time
}

// ImportResult is the structured outcome returned by the import operation.
// Failures are reported here rather than as errors; no error escapes the
// operation boundary.
type ImportResult struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message,omitempty"`
	PatientName  string      `json:"patient_name,omitempty"`
	PatientDOB   string      `json:"patient_dob,omitempty"`
	PatientID    string      `json:"patient_id,omitempty"`
	ImportID     string      `json:"import_id,omitempty"`
	TotalRecords int         `json:"total_records,omitempty"`
	Statistics   *Statistics `json:"statistics,omitempty"`
	Error        string      `json:"error,omitempty"`
	ErrorDetails string      `json:"error_details,omitempty"`
}
