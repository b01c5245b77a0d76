package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const tokenTypeHeader = "X-Snowflake-Authorization-Token-Type"

// Translation is the usable part of a translation-service response: the SQL
// to run and the service's prose interpretation of the question.
type Translation struct {
	SQL            string
	Interpretation string
}

// Translator calls the hosted text-to-SQL service with a key-pair JWT and
// extracts the statement from its response envelope.
type Translator struct {
	client        *http.Client
	baseURL       string
	semanticModel string
	timeoutMS     int
	log           zerolog.Logger
}

func NewTranslator(baseURL, semanticModel string, timeoutMS int, log zerolog.Logger) *Translator {
	return &Translator{
		client:        &http.Client{Timeout: time.Duration(timeoutMS) * time.Millisecond},
		baseURL:       baseURL,
		semanticModel: semanticModel,
		timeoutMS:     timeoutMS,
		log:           log,
	}
}

type translationRequest struct {
	Timeout           int                  `json:"timeout"`
	Messages          []translationMessage `json:"messages"`
	SemanticModelFile string               `json:"semantic_model_file"`
}

type translationMessage struct {
	Role    string               `json:"role"`
	Content []translationContent `json:"content"`
}

type translationContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Translate sends the question and returns the extracted translation.
// ErrNoSQL is returned when the service answered without a statement; the
// interpretation text, if any, still comes back alongside it.
func (t *Translator) Translate(ctx context.Context, token, question string) (*Translation, error) {
	payload, err := json.Marshal(translationRequest{
		Timeout: t.timeoutMS,
		Messages: []translationMessage{{
			Role:    "user",
			Content: []translationContent{{Type: "text", Text: question}},
		}},
		SemanticModelFile: t.semanticModel,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal translation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build translation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(tokenTypeHeader, "KEYPAIR_JWT")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call translation service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read translation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TranslationError{Status: resp.StatusCode, Body: string(body)}
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode translation response: %w", err)
	}
	return extract(envelope)
}

// extractStrategy pulls a translation out of one known envelope shape.
// Returns nil when the shape does not apply.
type extractStrategy func(envelope map[string]interface{}) *Translation

// Strategies run in order; the first that yields SQL wins. The structured
// message envelope is preferred, with bare top-level keys as fallbacks for
// older response shapes.
var extractStrategies = []extractStrategy{
	extractFromMessage,
	extractTopLevelKey("sql"),
	extractTopLevelKey("code"),
}

func extract(envelope map[string]interface{}) (*Translation, error) {
	var interpretation string
	for _, strategy := range extractStrategies {
		tr := strategy(envelope)
		if tr == nil {
			continue
		}
		if interpretation == "" {
			interpretation = tr.Interpretation
		}
		if tr.SQL != "" {
			tr.Interpretation = interpretation
			return tr, nil
		}
	}
	return &Translation{Interpretation: interpretation}, ErrNoSQL
}

// extractFromMessage handles the structured envelope: message.content is a
// list of typed items, "sql" items carry the statement and "text" items the
// interpretation prose.
func extractFromMessage(envelope map[string]interface{}) *Translation {
	message, ok := envelope["message"].(map[string]interface{})
	if !ok {
		return nil
	}
	content, ok := message["content"].([]interface{})
	if !ok {
		return nil
	}

	var tr Translation
	var texts []string
	for _, raw := range content {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch item["type"] {
		case "sql":
			if stmt, ok := item["statement"].(string); ok && tr.SQL == "" {
				tr.SQL = stmt
			}
		case "text":
			if text, ok := item["text"].(string); ok && text != "" {
				texts = append(texts, text)
			}
		}
	}
	tr.Interpretation = strings.Join(texts, "\n\n")
	if tr.SQL == "" && tr.Interpretation == "" {
		return nil
	}
	return &tr
}

func extractTopLevelKey(key string) extractStrategy {
	return func(envelope map[string]interface{}) *Translation {
		stmt, ok := envelope[key].(string)
		if !ok || stmt == "" {
			return nil
		}
		return &Translation{SQL: stmt}
	}
}
