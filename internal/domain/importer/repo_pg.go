package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthintel/healthintel/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.PatientID == uuid.Nil {
		p.PatientID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patients (patient_id, patient_identity, date_of_birth, patient_age)
		VALUES ($1, $2, $3, $4)`,
		p.PatientID, p.Identity, p.DateOfBirth, p.Age)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// =========== Import Repository ===========

type importRepoPG struct{ pool *pgxpool.Pool }

func NewImportRepoPG(pool *pgxpool.Pool) ImportRepository {
	return &importRepoPG{pool: pool}
}

func (r *importRepoPG) Create(ctx context.Context, run *ImportRun) error {
	if run.ImportID == uuid.Nil {
		run.ImportID = uuid.New()
	}
	if run.Status == "" {
		run.Status = StatusInProgress
	}

	files, err := json.Marshal(run.SourceFiles)
	if err != nil {
		return fmt.Errorf("marshal source files: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO imports (import_id, patient_id, source_files, import_status)
		VALUES ($1, $2, $3, $4)`,
		run.ImportID, run.PatientID, string(files), run.Status)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

func (r *importRepoPG) Finalize(ctx context.Context, importID uuid.UUID, stats *Statistics) error {
	byCategory, err := json.Marshal(stats.RecordsByCategory)
	if err != nil {
		return fmt.Errorf("marshal category counts: %w", err)
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal statistics: %w", err)
	}

	_, err = conn(ctx, r.pool).Exec(ctx, `
		UPDATE imports
		SET records_by_category = $1,
		    import_statistics = $2,
		    total_records = $3,
		    import_status = $4
		WHERE import_id = $5`,
		string(byCategory), string(payload), stats.TotalRecords, StatusCompleted, importID)
	if err != nil {
		return fmt.Errorf("finalize import run: %w", err)
	}
	return nil
}

func (r *importRepoPG) MarkFailed(ctx context.Context, importID uuid.UUID, reason string) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE imports
		SET import_status = $1, failure_reason = $2
		WHERE import_id = $3`,
		StatusFailed, reason, importID)
	if err != nil {
		return fmt.Errorf("mark import failed: %w", err)
	}
	return nil
}

func (r *importRepoPG) GetByID(ctx context.Context, importID uuid.UUID) (*ImportRun, error) {
	var run ImportRun
	var files, byCategory, statistics *string
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT import_id, patient_id, source_files, import_status,
		       records_by_category, import_statistics, total_records, failure_reason
		FROM imports WHERE import_id = $1`, importID).
		Scan(&run.ImportID, &run.PatientID, &files, &run.Status,
			&byCategory, &statistics, &run.TotalRecords, &run.FailureReason)
	if err != nil {
		return nil, fmt.Errorf("get import run: %w", err)
	}

	if files != nil {
		if err := json.Unmarshal([]byte(*files), &run.SourceFiles); err != nil {
			return nil, fmt.Errorf("unmarshal source files: %w", err)
		}
	}
	if statistics != nil {
		run.Statistics = &Statistics{}
		if err := json.Unmarshal([]byte(*statistics), run.Statistics); err != nil {
			return nil, fmt.Errorf("unmarshal statistics: %w", err)
		}
	}
	return &run, nil
}

// =========== Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

var recordColumns = []string{
	"record_id", "patient_id", "import_id", "record_category", "record_date",
	"provider", "item_description", "value_text", "value_numeric",
	"measurement_dimension", "reference_range", "flag", "test_category",
	"dosage", "form", "for_condition", "frequency", "medication_status",
	"vital_category", "condition_status", "vaccine_category",
	"procedure_category", "allergy_category", "source_file",
}

func (r *recordRepoPG) BulkInsert(ctx context.Context, records []*HealthRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(records))
	for i, rec := range records {
		rows[i] = []interface{}{
			rec.RecordID, rec.PatientID, rec.ImportID, rec.Category, rec.RecordDate,
			rec.Provider, rec.ItemDescription, rec.ValueText, rec.ValueNumeric,
			rec.MeasurementDimension, rec.ReferenceRange, rec.Flag, rec.TestCategory,
			rec.Dosage, rec.Form, rec.ForCondition, rec.Frequency, rec.MedicationStatus,
			rec.VitalCategory, rec.ConditionStatus, rec.VaccineCategory,
			rec.ProcedureCategory, rec.AllergyCategory, rec.SourceFile,
		}
	}

	n, err := conn(ctx, r.pool).CopyFrom(ctx,
		pgx.Identifier{"health_records"}, recordColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("bulk insert health records: %w", err)
	}
	if n != int64(len(records)) {
		return fmt.Errorf("bulk insert wrote %d of %d records", n, len(records))
	}
	return nil
}
