package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Source file patterns, matched in a fixed order so record extraction and
// statistics are deterministic for a given directory.
var sourcePatterns = []string{
	"lab_results_*.json",
	"vitals_*.json",
	"medications_*.json",
	"clinical_data_consolidated.json",
}

// Service orchestrates a full import run: discover files, extract records,
// persist everything and finalize the run with computed statistics.
type Service struct {
	patients  PatientRepository
	imports   ImportRepository
	records   RecordRepository
	tx        TxRunner
	extractor *Extractor
	log       zerolog.Logger
}

func NewService(patients PatientRepository, imports ImportRepository, records RecordRepository, tx TxRunner, log zerolog.Logger) *Service {
	return &Service{
		patients:  patients,
		imports:   imports,
		records:   records,
		tx:        tx,
		extractor: NewExtractor(log),
		log:       log,
	}
}

type sourceDoc struct {
	name string
	doc  *Document
}

// ImportDirectory runs a complete import for every recognized health data file
// in dir. It never returns an error; all failure modes are reported inside
// the result so callers get one uniform shape.
func (s *Service) ImportDirectory(ctx context.Context, dir string) (result *ImportResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("import panicked")
			result = &ImportResult{
				Success:      false,
				Error:        fmt.Sprintf("import failed: %v", r),
				ErrorDetails: string(debug.Stack()),
			}
		}
	}()

	dir = expandHome(dir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return &ImportResult{Success: false, Error: fmt.Sprintf("Directory not found: %s", dir)}
	}

	docs, sourceFiles := s.loadSources(dir)
	if len(docs) == 0 {
		return &ImportResult{Success: false, Error: ErrNoSourceFiles.Error()}
	}

	patientInfo := s.findPatientInfo(docs)
	if patientInfo == nil {
		return &ImportResult{Success: false, Error: ErrMissingPatientInfo.Error()}
	}

	patient := &Patient{
		Identity:    patientInfo.Identity,
		DateOfBirth: patientInfo.DateOfBirth,
		Age:         patientInfo.Age,
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		s.log.Error().Err(err).Msg("create patient")
		return &ImportResult{Success: false, Error: fmt.Sprintf("import failed: %v", err)}
	}

	run := &ImportRun{PatientID: patient.PatientID, SourceFiles: sourceFiles}
	if err := s.imports.Create(ctx, run); err != nil {
		s.log.Error().Err(err).Msg("create import run")
		return &ImportResult{Success: false, Error: fmt.Sprintf("import failed: %v", err)}
	}

	var records []*HealthRecord
	for _, src := range docs {
		records = append(records, s.extractor.ExtractAll(src.doc, patient.PatientID, run.ImportID, src.name)...)
	}

	if len(records) == 0 {
		reason := "No valid health records found in the provided files"
		s.failRun(ctx, run.ImportID, reason)
		return &ImportResult{Success: false, Error: reason}
	}

	stats := CalculateStatistics(records, sourceFiles)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.records.BulkInsert(ctx, records); err != nil {
			return err
		}
		return s.imports.Finalize(ctx, run.ImportID, stats)
	})
	if err != nil {
		s.log.Error().Err(err).Str("import_id", run.ImportID.String()).Msg("persist records")
		s.failRun(ctx, run.ImportID, err.Error())
		return &ImportResult{Success: false, Error: fmt.Sprintf("import failed: %v", err)}
	}

	s.log.Info().
		Str("import_id", run.ImportID.String()).
		Str("patient_id", patient.PatientID.String()).
		Int("total_records", stats.TotalRecords).
		Msg("import completed")

	dob := ""
	if patient.DateOfBirth != nil {
		dob = patient.DateOfBirth.Format("2006-01-02")
	}
	return &ImportResult{
		Success:      true,
		Message:      fmt.Sprintf("Successfully imported health records for %s", patient.Identity),
		PatientName:  patient.Identity,
		PatientDOB:   dob,
		PatientID:    patient.PatientID.String(),
		ImportID:     run.ImportID.String(),
		TotalRecords: stats.TotalRecords,
		Statistics:   stats,
	}
}

// GetImport returns a previously recorded import run.
func (s *Service) GetImport(ctx context.Context, importID uuid.UUID) (*ImportRun, error) {
	return s.imports.GetByID(ctx, importID)
}

// loadSources globs the recognized file patterns in order, parses each match
// and returns the parsed documents alongside their base file names. Files
// that fail to read or parse are logged and skipped; the rest of the batch
// still imports.
func (s *Service) loadSources(dir string) ([]sourceDoc, []string) {
	var docs []sourceDoc
	var names []string
	for _, pattern := range sourcePatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				s.log.Warn().Err(err).Str("file", path).Msg("skipping unreadable source file")
				continue
			}
			doc, err := ParseDocument(data)
			if err != nil {
				s.log.Warn().Err(err).Str("file", path).Msg("skipping malformed source file")
				continue
			}
			docs = append(docs, sourceDoc{name: filepath.Base(path), doc: doc})
			names = append(names, filepath.Base(path))
		}
	}
	return docs, names
}

// findPatientInfo scans documents in discovery order and returns demographics
// from the first header that carries a parseable date of birth.
func (s *Service) findPatientInfo(docs []sourceDoc) *PatientInfo {
	for _, src := range docs {
		if info := s.extractor.PatientInfo(src.doc); info != nil && info.DateOfBirth != nil {
			return info
		}
	}
	return nil
}

func (s *Service) failRun(ctx context.Context, importID uuid.UUID, reason string) {
	if err := s.imports.MarkFailed(ctx, importID, reason); err != nil {
		s.log.Error().Err(err).Str("import_id", importID.String()).Msg("mark import failed")
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
