package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// answerSchema describes a well-formed model answer: a bare JSON array of
// transaction objects. Parse accepts far more than this; Validate reports
// whether an answer needed no recovery at all.
const answerSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["date", "amount"],
		"properties": {
			"date": {"type": "string", "minLength": 1},
			"description": {"type": ["string", "null"]},
			"merchant": {"type": ["string", "null"]},
			"amount": {"type": ["number", "string"]},
			"txn_type": {"enum": ["debit", "credit", "DEBIT", "CREDIT", "Debit", "Credit"]},
			"balance": {"type": ["number", "string", "null"]},
			"currency": {"type": ["string", "null"]},
			"category": {"type": ["string", "null"]}
		}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("answer.json", strings.NewReader(answerSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("answer.json")
	})
	return compiledSchema, schemaErr
}

// Validate checks raw strictly against the expected answer shape.
func Validate(raw string) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return fmt.Errorf("not a JSON document: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("answer does not match schema: %w", err)
	}
	return nil
}
