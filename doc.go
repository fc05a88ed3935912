// Package ccv validates cloud-init configuration documents against JSON
// Schemas that use local $defs indirection.
//
// An Engine owns one resolved schema for its whole lifetime and validates
// YAML or JSON payloads against it, returning a Report of path-addressed
// errors and annotations:
//
//	eng, err := ccv.New(ctx, ccv.Embedded(ccv.CloudConfig))
//	report, err := eng.Validate(ctx, ccv.FormatYAML, payload)
//
// The building blocks live in subpackages: source parses documents, schema
// resolves and compiles schemas, validator walks a document against a
// compiled schema. Engines are immutable once built and safe for concurrent
// use.
package ccv
