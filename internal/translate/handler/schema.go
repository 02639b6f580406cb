package handler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"mediglot/internal/translate"
)

// requestSchema validates the translate request body: all three fields
// required and non-empty, language tags drawn from the fixed supported set.
type requestSchema struct {
	compiled *santhosh.Schema
}

func mustCompileSchema() *requestSchema {
	tags := translate.LanguageTags()
	quoted := make([]string, len(tags))
	for i, tag := range tags {
		quoted[i] = fmt.Sprintf("%q", tag)
	}
	langEnum := strings.Join(quoted, ",")

	schemaJSON := fmt.Sprintf(`{
		"type": "object",
		"required": ["text", "sourceLang", "targetLang"],
		"properties": {
			"text": {"type": "string", "minLength": 1},
			"sourceLang": {"type": "string", "enum": [%s]},
			"targetLang": {"type": "string", "enum": [%s]}
		}
	}`, langEnum, langEnum)

	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft7
	if err := compiler.AddResource("translate_request.json", bytes.NewReader([]byte(schemaJSON))); err != nil {
		panic(fmt.Sprintf("add translate request schema: %v", err))
	}
	return &requestSchema{compiled: compiler.MustCompile("translate_request.json")}
}

func (s *requestSchema) validate(body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return s.compiled.Validate(v)
}
