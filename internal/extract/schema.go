package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/hyperjump/shohin/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed product.schema.json
var productSchemaJSON string

var (
	compileOnce   sync.Once
	productSchema *jsonschema.Schema
	compileErr    error
)

// ProductSchema returns the compiled JSON Schema describing the record shape.
func ProductSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("product.schema.json", strings.NewReader(productSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("product.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile product schema: %w", err)
			return
		}
		productSchema = schema
	})
	return productSchema, compileErr
}

// ParseRecord validates a model reply against the record shape and decodes it.
// Numbers and booleans in text fields become text, missing fields become
// null or [], and unknown fields are dropped.
func ParseRecord(reply []byte) (*models.ProductRecord, error) {
	reply = bytes.TrimSpace(reply)
	if len(reply) == 0 {
		return nil, ErrEmptyReply
	}
	schema, err := ProductSchema()
	if err != nil {
		return nil, err
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(reply))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("reply is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("reply does not match record shape: %w", err)
	}

	var record models.ProductRecord
	if err := json.Unmarshal(reply, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	record.Normalize()
	return &record, nil
}
