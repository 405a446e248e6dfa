package runner

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"
)

// TemplateEngine handles parsing and executing payload templates. Every
// function it exposes is deterministic in the request index so that two runs
// send identical request shapes.
type TemplateEngine struct {
	funcMap template.FuncMap
}

// TemplateData is passed to the execution context
type TemplateData struct {
	Index     int
	Prefix    string
	RequestID string
	Features  []float64
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{}

	e.funcMap = template.FuncMap{
		"mod":       func(a, b int) int { return a % b },
		"add":       func(a, b int) int { return a + b },
		"float":     func(v int) float64 { return float64(v) },
		"json":      e.toJSON,
		"features":  e.features,
		"requestID": RequestID, // a bare {{requestID}} is the placeholder instead
	}

	return e
}

// Preprocess converts the short placeholders {{index}}, {{requestID}} and
// {{features}} to Go template syntax.
func (e *TemplateEngine) Preprocess(input string) string {
	s := input
	s = strings.ReplaceAll(s, "{{index}}", "{{.Index}}")
	s = strings.ReplaceAll(s, "{{requestID}}", "{{.RequestID}}")
	s = strings.ReplaceAll(s, "{{features}}", "{{json .Features}}")
	return s
}

func (e *TemplateEngine) Parse(name, text string) (*template.Template, error) {
	readyText := e.Preprocess(text)
	return template.New(name).Funcs(e.funcMap).Option("missingkey=error").Parse(readyText)
}

func (e *TemplateEngine) Execute(t *template.Template, data TemplateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --- Functions ---

func (e *TemplateEngine) toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *TemplateEngine) features(index int) (string, error) {
	return e.toJSON(Features(index))
}

type templateBody struct {
	engine *TemplateEngine
	tmpl   *template.Template
}

func (b *templateBody) Build(prefix string, index int) ([]byte, error) {
	return b.engine.Execute(b.tmpl, TemplateData{
		Index:     index,
		Prefix:    prefix,
		RequestID: RequestID(prefix, index),
		Features:  Features(index),
	})
}
