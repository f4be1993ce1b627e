package llm

import "errors"

// ErrSchemaViolation is returned by Structured when the model's output still
// fails schema validation after the single permitted retry.
var ErrSchemaViolation = errors.New("llm: model output violates the requested schema")

// ErrNoBackendForClass is returned when no Backend is registered for a model
// class the adapter was asked to use.
var ErrNoBackendForClass = errors.New("llm: no backend configured for model class")
