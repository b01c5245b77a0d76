package query

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRunQuery_Endpoint(t *testing.T) {
	translator := &fakeTranslator{translation: &Translation{SQL: "SELECT 1"}}
	svc := NewService(queryConfig(t), translator, &fakeExecutor{}, zerolog.Nop())
	h := NewHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries",
		strings.NewReader(`{"query": "show my labs"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.RunQuery(c); err != nil {
		t.Fatalf("RunQuery() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var outcome Outcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatal(err)
	}
	if outcome.Query != "show my labs" {
		t.Errorf("Query = %q", outcome.Query)
	}
	if !outcome.QuerySuccessful {
		t.Errorf("QuerySuccessful = false, error = %q", outcome.Error)
	}
}

func TestRunQuery_MissingQueryText(t *testing.T) {
	svc := NewService(queryConfig(t), &fakeTranslator{}, &fakeExecutor{}, zerolog.Nop())
	h := NewHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.RunQuery(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
