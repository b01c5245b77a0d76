package query

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthintel/healthintel/internal/config"
	"github.com/healthintel/healthintel/internal/platform/keypair"
)

// SQLTranslator turns a question into SQL via the hosted translation service.
type SQLTranslator interface {
	Translate(ctx context.Context, token, question string) (*Translation, error)
}

// SQLExecutor runs a translated statement and returns rows plus column names.
type SQLExecutor interface {
	Execute(ctx context.Context, sql string) ([]map[string]interface{}, []string, error)
}

// Service answers natural-language questions: it signs a key-pair assertion,
// has the hosted service translate the question to SQL, runs the SQL against
// the health records database and classifies the result.
type Service struct {
	cfg        *config.Config
	translator SQLTranslator
	executor   SQLExecutor
	log        zerolog.Logger
}

func NewService(cfg *config.Config, translator SQLTranslator, executor SQLExecutor, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, translator: translator, executor: executor, log: log}
}

// RunQuery processes one question end to end. It never returns an error; all
// failure modes land inside the outcome so callers get one uniform shape.
func (s *Service) RunQuery(ctx context.Context, question string) (outcome *Outcome) {
	start := time.Now()
	outcome = &Outcome{Query: question}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("query panicked")
			outcome = &Outcome{
				Query:        question,
				Error:        fmt.Sprintf("query failed: %v", r),
				ErrorDetails: string(debug.Stack()),
			}
		}
		outcome.ExecutionTime = time.Since(start).Seconds()
	}()

	if err := s.cfg.ValidateQuery(); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	key, err := keypair.Load(s.cfg.PrivateKeyPath)
	if err != nil {
		s.log.Error().Err(err).Msg("load private key")
		outcome.Error = fmt.Sprintf("could not load private key: %v", err)
		return outcome
	}
	token, err := keypair.Token(key, s.cfg.Account, s.cfg.User, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("sign assertion")
		outcome.Error = fmt.Sprintf("could not sign assertion: %v", err)
		return outcome
	}

	translation, err := s.translator.Translate(ctx, token, question)
	if err != nil {
		if errors.Is(err, ErrNoSQL) {
			outcome.Interpretation = translation.Interpretation
			outcome.Error = ErrNoSQL.Error()
			outcome.Warnings = append(outcome.Warnings, "translation produced no SQL; nothing was executed")
			return outcome
		}
		s.log.Error().Err(err).Msg("translate question")
		outcome.Error = fmt.Sprintf("translation failed: %v", err)
		return outcome
	}
	outcome.SQL = translation.SQL
	outcome.Interpretation = translation.Interpretation

	results, columns, err := s.executor.Execute(ctx, translation.SQL)
	if err != nil {
		s.log.Error().Err(err).Str("sql", translation.SQL).Msg("execute translated query")
		outcome.Error = fmt.Sprintf("query execution failed: %v", err)
		return outcome
	}

	outcome.Results = results
	outcome.ResultCount = len(results)
	outcome.DataMetrics = BuildMetrics(question, columns, results)
	outcome.QuerySuccessful = true

	s.log.Info().
		Int("rows", outcome.ResultCount).
		Str("category", outcome.DataMetrics.DataCategory).
		Msg("query completed")
	return outcome
}
