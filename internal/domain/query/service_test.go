package query

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/healthintel/healthintel/internal/config"
)

func writeTestKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "rsa_key.p8")
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func queryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Account:           "myorg-myacct",
		User:              "ANALYST_USER",
		PrivateKeyPath:    writeTestKey(t),
		Database:          "HEALTH_INTELLIGENCE",
		Schema:            "HEALTH_RECORDS",
		SemanticModelFile: "model.yaml",
		AnalystTimeoutMS:  60000,
	}
}

type fakeTranslator struct {
	translation *Translation
	err         error
}

func (f *fakeTranslator) Translate(ctx context.Context, token, question string) (*Translation, error) {
	return f.translation, f.err
}

type fakeExecutor struct {
	results []map[string]interface{}
	columns []string
	err     error
	gotSQL  string
}

func (f *fakeExecutor) Execute(ctx context.Context, sql string) ([]map[string]interface{}, []string, error) {
	f.gotSQL = sql
	return f.results, f.columns, f.err
}

func TestRunQuery_Success(t *testing.T) {
	translator := &fakeTranslator{translation: &Translation{
		SQL:            "SELECT record_date, value_numeric FROM health_records",
		Interpretation: "Your cholesterol results over time.",
	}}
	executor := &fakeExecutor{
		columns: []string{"record_date", "value_numeric"},
		results: []map[string]interface{}{
			{"record_date": "2024-05-20T00:00:00Z", "value_numeric": 5.5},
		},
	}
	svc := NewService(queryConfig(t), translator, executor, zerolog.Nop())

	outcome := svc.RunQuery(context.Background(), "What is my cholesterol?")

	if !outcome.QuerySuccessful {
		t.Fatalf("QuerySuccessful = false, error = %q", outcome.Error)
	}
	if outcome.SQL != translator.translation.SQL {
		t.Errorf("SQL = %q", outcome.SQL)
	}
	if executor.gotSQL != translator.translation.SQL {
		t.Errorf("executed %q", executor.gotSQL)
	}
	if outcome.ResultCount != 1 || len(outcome.Results) != 1 {
		t.Errorf("ResultCount = %d", outcome.ResultCount)
	}
	if outcome.DataMetrics == nil || outcome.DataMetrics.DataCategory != "lab_results" {
		t.Errorf("DataMetrics = %+v", outcome.DataMetrics)
	}
	if !outcome.DataMetrics.HasDateData || !outcome.DataMetrics.HasNumericData {
		t.Errorf("shape flags = %+v", outcome.DataMetrics)
	}
	if outcome.ExecutionTime < 0 {
		t.Errorf("ExecutionTime = %v", outcome.ExecutionTime)
	}
}

func TestRunQuery_MissingSettings(t *testing.T) {
	svc := NewService(&config.Config{}, &fakeTranslator{}, &fakeExecutor{}, zerolog.Nop())

	outcome := svc.RunQuery(context.Background(), "anything")

	if outcome.QuerySuccessful {
		t.Fatal("QuerySuccessful = true without settings")
	}
	if outcome.Error == "" {
		t.Error("Error is empty")
	}
}

func TestRunQuery_MissingKeyFile(t *testing.T) {
	cfg := queryConfig(t)
	cfg.PrivateKeyPath = "/does/not/exist.p8"
	svc := NewService(cfg, &fakeTranslator{}, &fakeExecutor{}, zerolog.Nop())

	outcome := svc.RunQuery(context.Background(), "anything")

	if outcome.QuerySuccessful {
		t.Fatal("QuerySuccessful = true with missing key")
	}
}

func TestRunQuery_NoSQLSkipsExecution(t *testing.T) {
	translator := &fakeTranslator{
		translation: &Translation{Interpretation: "I cannot answer that."},
		err:         ErrNoSQL,
	}
	executor := &fakeExecutor{}
	svc := NewService(queryConfig(t), translator, executor, zerolog.Nop())

	outcome := svc.RunQuery(context.Background(), "nonsense")

	if outcome.QuerySuccessful {
		t.Fatal("QuerySuccessful = true without SQL")
	}
	if outcome.Interpretation != "I cannot answer that." {
		t.Errorf("Interpretation = %q", outcome.Interpretation)
	}
	if executor.gotSQL != "" {
		t.Errorf("executor ran %q, want no execution", executor.gotSQL)
	}
	if len(outcome.Warnings) == 0 {
		t.Error("expected a warning about skipped execution")
	}
}

func TestRunQuery_ExecutionFailure(t *testing.T) {
	translator := &fakeTranslator{translation: &Translation{SQL: "SELECT nope"}}
	executor := &fakeExecutor{err: errors.New("relation does not exist")}
	svc := NewService(queryConfig(t), translator, executor, zerolog.Nop())

	outcome := svc.RunQuery(context.Background(), "anything")

	if outcome.QuerySuccessful {
		t.Fatal("QuerySuccessful = true despite execution failure")
	}
	if outcome.SQL != "SELECT nope" {
		t.Errorf("SQL = %q, want the attempted statement kept", outcome.SQL)
	}
}

// End-to-end through the real translator against a stub service.
func TestRunQuery_AgainstStubTranslationService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(tokenTypeHeader); got != "KEYPAIR_JWT" {
			t.Errorf("token type header = %q", got)
		}
		if got := r.Header.Get("Authorization"); len(got) < len("Bearer x") {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`{"message": {"content": [
			{"type": "sql", "statement": "SELECT item_description FROM health_records"}
		]}}`))
	}))
	defer srv.Close()

	cfg := queryConfig(t)
	translator := NewTranslator(srv.URL, cfg.SemanticModelPath(), cfg.AnalystTimeoutMS, zerolog.Nop())
	executor := &fakeExecutor{columns: []string{"item_description"}}
	svc := NewService(cfg, translator, executor, zerolog.Nop())

	outcome := svc.RunQuery(context.Background(), "show my labs")

	if !outcome.QuerySuccessful {
		t.Fatalf("QuerySuccessful = false, error = %q", outcome.Error)
	}
	if executor.gotSQL != "SELECT item_description FROM health_records" {
		t.Errorf("executed %q", executor.gotSQL)
	}
}
