package importer

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
}

type ImportRepository interface {
	Create(ctx context.Context, run *ImportRun) error
	// Finalize attaches the final statistics and marks the run COMPLETED.
	Finalize(ctx context.Context, importID uuid.UUID, stats *Statistics) error
	// MarkFailed records the terminal FAILED status with the failure reason.
	MarkFailed(ctx context.Context, importID uuid.UUID, reason string) error
	GetByID(ctx context.Context, importID uuid.UUID) (*ImportRun, error)
}

type RecordRepository interface {
	// BulkInsert writes the full canonical record set as one batched write.
	BulkInsert(ctx context.Context, records []*HealthRecord) error
}

// TxRunner scopes a function to one transaction; the context passed to fn
// carries it so repositories route their statements through it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
