package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockPatientRepo struct {
	created []*Patient
	err     error
}

func (m *mockPatientRepo) Create(ctx context.Context, p *Patient) error {
	if m.err != nil {
		return m.err
	}
	if p.PatientID == uuid.Nil {
		p.PatientID = uuid.New()
	}
	m.created = append(m.created, p)
	return nil
}

type mockImportRepo struct {
	created   []*ImportRun
	finalized map[uuid.UUID]*Statistics
	failed    map[uuid.UUID]string
}

func newMockImportRepo() *mockImportRepo {
	return &mockImportRepo{
		finalized: make(map[uuid.UUID]*Statistics),
		failed:    make(map[uuid.UUID]string),
	}
}

func (m *mockImportRepo) Create(ctx context.Context, run *ImportRun) error {
	if run.ImportID == uuid.Nil {
		run.ImportID = uuid.New()
	}
	if run.Status == "" {
		run.Status = StatusInProgress
	}
	m.created = append(m.created, run)
	return nil
}

func (m *mockImportRepo) Finalize(ctx context.Context, importID uuid.UUID, stats *Statistics) error {
	m.finalized[importID] = stats
	return nil
}

func (m *mockImportRepo) MarkFailed(ctx context.Context, importID uuid.UUID, reason string) error {
	m.failed[importID] = reason
	return nil
}

func (m *mockImportRepo) GetByID(ctx context.Context, importID uuid.UUID) (*ImportRun, error) {
	for _, run := range m.created {
		if run.ImportID == importID {
			return run, nil
		}
	}
	return nil, errors.New("not found")
}

type mockRecordRepo struct {
	inserted []*HealthRecord
	err      error
}

func (m *mockRecordRepo) BulkInsert(ctx context.Context, records []*HealthRecord) error {
	if m.err != nil {
		return m.err
	}
	m.inserted = append(m.inserted, records...)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(patients *mockPatientRepo, imports *mockImportRepo, records *mockRecordRepo) *Service {
	return NewService(patients, imports, records, passthroughTx{}, zerolog.Nop())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const labFile = `{
	"header_fields": {"Patient_Name": "Jane Roe", "Date_Of_Birth": "1980-03-15", "Patient_Age": 44},
	"Lab_Results": [{
		"Test_Date": "2024-05-20",
		"Provider": "Quest Diagnostics",
		"Tests": [
			{"Test_Name": "Glucose", "Test_Value": "98", "Test_Unit": "mg/dL", "Reference_Range": "70-99"},
			{"Test_Name": "HDL", "Test_Value": "55"}
		]
	}]
}`

const medsFile = `{
	"header_fields": {"Patient_Name": "Jane Roe", "Date_Of_Birth": "1980-03-15"},
	"Medications": [
		{"Medication_Name": "Metformin", "Prescription_Date": "2024-02-01", "Status": "ACTIVE"}
	]
}`

func TestImportDirectory_Success(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lab_results_2024.json", labFile)
	writeFile(t, dir, "medications_2024.json", medsFile)

	patients := &mockPatientRepo{}
	imports := newMockImportRepo()
	records := &mockRecordRepo{}
	svc := newTestService(patients, imports, records)

	result := svc.ImportDirectory(context.Background(), dir)

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if result.PatientName != "Jane Roe" {
		t.Errorf("PatientName = %q", result.PatientName)
	}
	if result.PatientDOB != "1980-03-15" {
		t.Errorf("PatientDOB = %q", result.PatientDOB)
	}
	if result.Message != "Successfully imported health records for Jane Roe" {
		t.Errorf("Message = %q", result.Message)
	}
	if result.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", result.TotalRecords)
	}
	if len(records.inserted) != 3 {
		t.Errorf("inserted %d records, want 3", len(records.inserted))
	}
	if len(patients.created) != 1 || len(imports.created) != 1 {
		t.Fatalf("created %d patients, %d runs", len(patients.created), len(imports.created))
	}

	run := imports.created[0]
	if _, ok := imports.finalized[run.ImportID]; !ok {
		t.Error("run never finalized")
	}
	if len(imports.failed) != 0 {
		t.Errorf("unexpected failures: %v", imports.failed)
	}
	wantFiles := []string{"lab_results_2024.json", "medications_2024.json"}
	if len(run.SourceFiles) != 2 || run.SourceFiles[0] != wantFiles[0] || run.SourceFiles[1] != wantFiles[1] {
		t.Errorf("SourceFiles = %v, want %v", run.SourceFiles, wantFiles)
	}
	for _, rec := range records.inserted {
		if rec.PatientID != patients.created[0].PatientID {
			t.Errorf("record patient %s != created patient %s", rec.PatientID, patients.created[0].PatientID)
		}
		if rec.ImportID != run.ImportID {
			t.Errorf("record import %s != run %s", rec.ImportID, run.ImportID)
		}
	}
}

func TestImportDirectory_MedicationsOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "medications_2024.json", medsFile)

	imports := newMockImportRepo()
	svc := newTestService(&mockPatientRepo{}, imports, &mockRecordRepo{})

	result := svc.ImportDirectory(context.Background(), dir)

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	want := map[string]int{"Medications": 1}
	got := result.Statistics.RecordsByCategory
	if len(got) != 1 || got["Medications"] != want["Medications"] {
		t.Errorf("RecordsByCategory = %v, want %v", got, want)
	}
}

func TestImportDirectory_NoDedupBetweenRuns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lab_results_2024.json", labFile)

	patients := &mockPatientRepo{}
	imports := newMockImportRepo()
	records := &mockRecordRepo{}
	svc := newTestService(patients, imports, records)

	first := svc.ImportDirectory(context.Background(), dir)
	second := svc.ImportDirectory(context.Background(), dir)

	if !first.Success || !second.Success {
		t.Fatalf("runs failed: %q / %q", first.Error, second.Error)
	}
	if len(patients.created) != 2 {
		t.Fatalf("created %d patients, want 2", len(patients.created))
	}
	if patients.created[0].PatientID == patients.created[1].PatientID {
		t.Error("same patient id reused across runs")
	}
}

func TestImportDirectory_DirectoryMissing(t *testing.T) {
	imports := newMockImportRepo()
	svc := newTestService(&mockPatientRepo{}, imports, &mockRecordRepo{})

	result := svc.ImportDirectory(context.Background(), "/does/not/exist")

	if result.Success {
		t.Fatal("Success = true for missing directory")
	}
	if result.Error != "Directory not found: /does/not/exist" {
		t.Errorf("Error = %q", result.Error)
	}
	if len(imports.created) != 0 {
		t.Errorf("created %d runs, want 0", len(imports.created))
	}
}

func TestImportDirectory_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	patients := &mockPatientRepo{}
	imports := newMockImportRepo()
	records := &mockRecordRepo{}
	svc := newTestService(patients, imports, records)

	result := svc.ImportDirectory(context.Background(), dir)

	if result.Success {
		t.Fatal("Success = true for empty directory")
	}
	if result.Error != ErrNoSourceFiles.Error() {
		t.Errorf("Error = %q", result.Error)
	}
	if len(patients.created) != 0 || len(imports.created) != 0 || len(records.inserted) != 0 {
		t.Error("writes performed for empty directory")
	}
}

func TestImportDirectory_MissingPatientInfo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lab_results_2024.json", `{"Lab_Results": []}`)

	imports := newMockImportRepo()
	svc := newTestService(&mockPatientRepo{}, imports, &mockRecordRepo{})

	result := svc.ImportDirectory(context.Background(), dir)

	if result.Success {
		t.Fatal("Success = true without patient info")
	}
	if result.Error != ErrMissingPatientInfo.Error() {
		t.Errorf("Error = %q", result.Error)
	}
	if len(imports.created) != 0 {
		t.Error("run created without patient info")
	}
}

func TestImportDirectory_EmptyCategoriesFailsRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lab_results_2024.json", `{
		"header_fields": {"Patient_Name": "Jane Roe", "Date_Of_Birth": "1980-03-15"},
		"Lab_Results": []
	}`)

	imports := newMockImportRepo()
	records := &mockRecordRepo{}
	svc := newTestService(&mockPatientRepo{}, imports, records)

	result := svc.ImportDirectory(context.Background(), dir)

	if result.Success {
		t.Fatal("Success = true with zero records")
	}
	want := "No valid health records found in the provided files"
	if result.Error != want {
		t.Errorf("Error = %q, want %q", result.Error, want)
	}
	if len(imports.created) != 1 {
		t.Fatalf("created %d runs, want 1", len(imports.created))
	}
	run := imports.created[0]
	if reason := imports.failed[run.ImportID]; reason != want {
		t.Errorf("failure reason = %q, want %q", reason, want)
	}
	if len(records.inserted) != 0 {
		t.Error("records inserted despite empty extraction")
	}
}

func TestImportDirectory_MalformedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lab_results_2024.json", labFile)
	writeFile(t, dir, "vitals_2024.json", `{"Vitals": "broken"}`)

	imports := newMockImportRepo()
	records := &mockRecordRepo{}
	svc := newTestService(&mockPatientRepo{}, imports, records)

	result := svc.ImportDirectory(context.Background(), dir)

	if !result.Success {
		t.Fatalf("Success = false, error = %q", result.Error)
	}
	if result.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2 from the healthy file", result.TotalRecords)
	}
	run := imports.created[0]
	if len(run.SourceFiles) != 1 || run.SourceFiles[0] != "lab_results_2024.json" {
		t.Errorf("SourceFiles = %v, want only the healthy file", run.SourceFiles)
	}
}

func TestImportDirectory_PersistFailureMarksRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lab_results_2024.json", labFile)

	imports := newMockImportRepo()
	records := &mockRecordRepo{err: errors.New("copy failed")}
	svc := newTestService(&mockPatientRepo{}, imports, records)

	result := svc.ImportDirectory(context.Background(), dir)

	if result.Success {
		t.Fatal("Success = true despite persistence failure")
	}
	run := imports.created[0]
	if reason := imports.failed[run.ImportID]; reason != "copy failed" {
		t.Errorf("failure reason = %q", reason)
	}
	if _, ok := imports.finalized[run.ImportID]; ok {
		t.Error("run finalized despite persistence failure")
	}
}
