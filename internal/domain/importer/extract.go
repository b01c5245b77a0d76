package importer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Document is the parsed root of one health data export file. The per-category
// sections are optional; a file carries whichever apply.
type Document struct {
	HeaderFields  *HeaderFields       `json:"header_fields"`
	LabResults    []LabSession        `json:"Lab_Results"`
	Medications   []MedicationEntry   `json:"Medications"`
	Vitals        []VitalEntry        `json:"Vitals"`
	Conditions    []ConditionEntry    `json:"Conditions"`
	Procedures    []ProcedureEntry    `json:"Procedures"`
	Allergies     []AllergyEntry      `json:"Allergies"`
	Immunizations []ImmunizationEntry `json:"Immunizations"`
}

// HeaderFields carries the patient demographics every export file repeats.
type HeaderFields struct {
	PatientName string `json:"Patient_Name"`
	DateOfBirth string `json:"Date_Of_Birth"`
	PatientAge  *int   `json:"Patient_Age"`
	ReportDate  string `json:"Report_Date"`
}

// LabSession groups the test results drawn on one date by one provider.
type LabSession struct {
	TestDate string    `json:"Test_Date"`
	Provider string    `json:"Provider"`
	Tests    []LabTest `json:"Tests"`
}

type LabTest struct {
	TestName       string     `json:"Test_Name"`
	TestValue      FlexString `json:"Test_Value"`
	TestUnit       string     `json:"Test_Unit"`
	ReferenceRange string     `json:"Reference_Range"`
	Flag           string     `json:"Flag"`
	TestCategory   string     `json:"Test_Category"`
}

type MedicationEntry struct {
	PrescriptionDate string `json:"Prescription_Date"`
	Provider         string `json:"Provider"`
	MedicationName   string `json:"Medication_Name"`
	Dosage           string `json:"Dosage"`
	Form             string `json:"Form"`
	ForCondition     string `json:"For_Condition"`
	Frequency        string `json:"Frequency"`
	Status           string `json:"Status"`
}

type VitalEntry struct {
	MeasurementDate string   `json:"Measurement_Date"`
	Provider        string   `json:"Provider"`
	VitalType       string   `json:"Vital_Type"`
	VitalValue      *float64 `json:"Vital_Value"`
	VitalUnit       string   `json:"Vital_Unit"`
}

type ConditionEntry struct {
	DiagnosisDate string `json:"Diagnosis_Date"`
	Provider      string `json:"Provider"`
	ConditionName string `json:"Condition_Name"`
	Status        string `json:"Status"`
}

type ProcedureEntry struct {
	ProcedureDate string `json:"Procedure_Date"`
	Provider      string `json:"Provider"`
	ProcedureName string `json:"Procedure_Name"`
	ProcedureType string `json:"Procedure_Type"`
}

type AllergyEntry struct {
	RecordDate string `json:"Record_Date"`
	Provider   string `json:"Provider"`
	Allergy    string `json:"Allergy"`
}

type ImmunizationEntry struct {
	ImmunizationDate string `json:"Immunization_Date"`
	Provider         string `json:"Provider"`
	VaccineName      string `json:"Vaccine_Name"`
	VaccineType      string `json:"Vaccine_Type"`
}

// FlexString decodes a JSON string, number, or null into a string, since some
// exports quote lab values and others do not.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value is neither string nor number: %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// ParseDocument decodes one export file. A type-malformed entry fails the
// whole file; the caller logs and skips it while the rest of the batch
// continues.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse health data file: %w", err)
	}
	return &doc, nil
}

// Extractor maps parsed documents into canonical health records. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	log zerolog.Logger
}

func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// parseDate wraps ParseDate with a warning on unparseable non-empty input.
func (e *Extractor) parseDate(s string) *time.Time {
	d := ParseDate(s)
	if d == nil && s != "" {
		e.log.Warn().Str("value", s).Msg("could not parse date")
	}
	return d
}

// PatientInfo reads the demographic header of a document. Returns nil when
// the document has no header section.
func (e *Extractor) PatientInfo(doc *Document) *PatientInfo {
	if doc.HeaderFields == nil {
		return nil
	}
	h := doc.HeaderFields
	identity := h.PatientName
	if identity == "" {
		identity = "Unknown Patient"
	}
	return &PatientInfo{
		Identity:    identity,
		DateOfBirth: e.parseDate(h.DateOfBirth),
		Age:         h.PatientAge,
		ReportDate:  e.parseDate(h.ReportDate),
	}
}

// LabRecords maps the Lab_Results sessions of a document into canonical
// records, one per test.
func (e *Extractor) LabRecords(doc *Document, patientID, importID uuid.UUID, sourceFile string) []*HealthRecord {
	var records []*HealthRecord
	for _, session := range doc.LabResults {
		testDate := e.parseDate(session.TestDate)
		provider := defaultStr(session.Provider, unknownProvider)

		for _, test := range session.Tests {
			rec := &HealthRecord{
				RecordID:             uuid.New(),
				PatientID:            patientID,
				ImportID:             importID,
				Category:             CategoryLab,
				RecordDate:           testDate,
				Provider:             provider,
				ItemDescription:      test.TestName,
				ValueText:            optStr(string(test.TestValue)),
				MeasurementDimension: optStr(test.TestUnit),
				ReferenceRange:       optStr(test.ReferenceRange),
				Flag:                 optStr(test.Flag),
				TestCategory:         optStr(test.TestCategory),
				SourceFile:           sourceFile,
			}
			rec.ValueNumeric = numericValue(string(test.TestValue))
			records = append(records, rec)
		}
	}
	return records
}

// MedicationRecords maps the Medications section into canonical records.
func (e *Extractor) MedicationRecords(doc *Document, patientID, importID uuid.UUID, sourceFile string) []*HealthRecord {
	var records []*HealthRecord
	for _, med := range doc.Medications {
		records = append(records, &HealthRecord{
			RecordID:         uuid.New(),
			PatientID:        patientID,
			ImportID:         importID,
			Category:         CategoryMedication,
			RecordDate:       e.parseDate(med.PrescriptionDate),
			Provider:         defaultStr(med.Provider, unknownProvider),
			ItemDescription:  med.MedicationName,
			Dosage:           optStr(med.Dosage),
			Form:             optStr(med.Form),
			ForCondition:     optStr(med.ForCondition),
			Frequency:        optStr(med.Frequency),
			MedicationStatus: optStr(defaultStr(med.Status, "PRESCRIBED")),
			SourceFile:       sourceFile,
		})
	}
	return records
}

// VitalRecords maps the Vitals section into canonical records. The vital type
// doubles as both the item description and the vital sub-category.
func (e *Extractor) VitalRecords(doc *Document, patientID, importID uuid.UUID, sourceFile string) []*HealthRecord {
	var records []*HealthRecord
	for _, vital := range doc.Vitals {
		records = append(records, &HealthRecord{
			RecordID:             uuid.New(),
			PatientID:            patientID,
			ImportID:             importID,
			Category:             CategoryVital,
			RecordDate:           e.parseDate(vital.MeasurementDate),
			Provider:             defaultStr(vital.Provider, unknownProvider),
			ItemDescription:      vital.VitalType,
			ValueNumeric:         vital.VitalValue,
			MeasurementDimension: optStr(vital.VitalUnit),
			VitalCategory:        optStr(vital.VitalType),
			SourceFile:           sourceFile,
		})
	}
	return records
}

// ClinicalRecords maps the consolidated clinical sections (conditions,
// procedures, allergies, immunizations) into canonical records.
func (e *Extractor) ClinicalRecords(doc *Document, patientID, importID uuid.UUID, sourceFile string) []*HealthRecord {
	var records []*HealthRecord

	for _, cond := range doc.Conditions {
		records = append(records, &HealthRecord{
			RecordID:        uuid.New(),
			PatientID:       patientID,
			ImportID:        importID,
			Category:        CategoryCondition,
			RecordDate:      e.parseDate(cond.DiagnosisDate),
			Provider:        defaultStr(cond.Provider, unknownProvider),
			ItemDescription: cond.ConditionName,
			ConditionStatus: optStr(cond.Status),
			SourceFile:      sourceFile,
		})
	}

	for _, proc := range doc.Procedures {
		records = append(records, &HealthRecord{
			RecordID:          uuid.New(),
			PatientID:         patientID,
			ImportID:          importID,
			Category:          CategoryProcedure,
			RecordDate:        e.parseDate(proc.ProcedureDate),
			Provider:          defaultStr(proc.Provider, unknownProvider),
			ItemDescription:   proc.ProcedureName,
			ProcedureCategory: optStr(proc.ProcedureType),
			SourceFile:        sourceFile,
		})
	}

	for _, allergy := range doc.Allergies {
		records = append(records, &HealthRecord{
			RecordID:        uuid.New(),
			PatientID:       patientID,
			ImportID:        importID,
			Category:        CategoryAllergy,
			RecordDate:      e.parseDate(allergy.RecordDate),
			Provider:        defaultStr(allergy.Provider, unknownProvider),
			ItemDescription: allergy.Allergy,
			AllergyCategory: optStr(CategoryAllergy),
			SourceFile:      sourceFile,
		})
	}

	for _, imm := range doc.Immunizations {
		records = append(records, &HealthRecord{
			RecordID:        uuid.New(),
			PatientID:       patientID,
			ImportID:        importID,
			Category:        CategoryImmunization,
			RecordDate:      e.parseDate(imm.ImmunizationDate),
			Provider:        defaultStr(imm.Provider, unknownProvider),
			ItemDescription: imm.VaccineName,
			VaccineCategory: optStr(imm.VaccineType),
			SourceFile:      sourceFile,
		})
	}

	return records
}

// ExtractAll runs every category extractor over one document and returns the
// union in category order.
func (e *Extractor) ExtractAll(doc *Document, patientID, importID uuid.UUID, sourceFile string) []*HealthRecord {
	var records []*HealthRecord
	records = append(records, e.LabRecords(doc, patientID, importID, sourceFile)...)
	records = append(records, e.MedicationRecords(doc, patientID, importID, sourceFile)...)
	records = append(records, e.VitalRecords(doc, patientID, importID, sourceFile)...)
	records = append(records, e.ClinicalRecords(doc, patientID, importID, sourceFile)...)
	return records
}

// numericValue applies the historical loose numeric heuristic: after trimming
// whitespace and deleting every '.' and '-', the remainder must be all
// decimal digits; the original string must then parse as a float. Strings
// like "5.5.5" pass the digit check but fail the parse and stay text-only.
// Kept behaviorally identical to the long-standing heuristic so VALUE_NUMERIC
// population matches previously imported data.
func numericValue(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	stripped := strings.NewReplacer(".", "", "-", "").Replace(s)
	if stripped == "" {
		return nil
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func defaultStr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
