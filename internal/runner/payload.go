package runner

import (
	"encoding/json"
	"fmt"
)

// Payload is the body POSTed to /infer.
type Payload struct {
	RequestID string    `json:"request_id"`
	InputData []float64 `json:"input_data"`
}

// Features derives the input vector from the request index. Indices that
// share index%10 produce identical vectors, which is what the cache
// experiment relies on.
func Features(index int) []float64 {
	m := float64(index % 10)
	return []float64{m, m + 1, m + 2}
}

func RequestID(prefix string, index int) string {
	return fmt.Sprintf("%s_%d", prefix, index)
}

func NewPayload(prefix string, index int) Payload {
	return Payload{
		RequestID: RequestID(prefix, index),
		InputData: Features(index),
	}
}

// BodyBuilder renders the request body for a given index.
type BodyBuilder interface {
	Build(prefix string, index int) ([]byte, error)
}

type jsonBody struct{}

func (jsonBody) Build(prefix string, index int) ([]byte, error) {
	return json.Marshal(NewPayload(prefix, index))
}

// DefaultBody encodes Payload as JSON.
var DefaultBody BodyBuilder = jsonBody{}

// NewBodyBuilder returns DefaultBody for an empty template, otherwise a
// builder backed by the template engine.
func NewBodyBuilder(tmpl string) (BodyBuilder, error) {
	if tmpl == "" {
		return DefaultBody, nil
	}
	e := NewTemplateEngine()
	t, err := e.Parse("payload", tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse payload template: %w", err)
	}
	return &templateBody{engine: e, tmpl: t}, nil
}
