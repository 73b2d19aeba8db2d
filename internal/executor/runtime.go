package executor

import (
	"context"
)

// Runtime defines the host integration surface for field resolution,
// abstract type resolution, and leaf-value serialization used by the Executor.
//
// General contract
//   - Errors returned from any method are converted into located GraphQL errors.
//     If the field's return type is Non-Null, the Executor will propagate the
//     null up to the nearest nullable ancestor.
//   - Implementations must be concurrency-safe. The Executor calls these
//     methods concurrently for different operations, and for sibling fields
//     marked Concurrent within one operation.
//   - Implementations must not mutate source or args values.
//
// Object/field identifiers
// - objectType is the GraphQL type name (e.g. "User").
// - field is the GraphQL field name on that type (e.g. "posts").
// - For root fields, objectType is the root type name (e.g. "Query").
// - source is the parent object value (nil for root).
// - args is the map of argument names to already-coerced Go values. Optional
//   arguments the request omitted are absent from the map.
//
// Abstract types and leaf values
//   - ResolveType must return the concrete type name for interface/union values.
//   - SerializeLeafValue must coerce/serialize scalars and enums into JSON-safe
//     Go values. For enums, return the enum name as string.
//
// Subscriptions
//   - For a subscription root field, ResolveField returns a SourceStream.
//     Every value the stream yields is completed as the root field's value.
type Runtime interface {
	// ResolveField resolves one field of one parent value. Return (nil, nil)
	// to produce a GraphQL null for nullable fields.
	ResolveField(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// ResolveType determines the concrete runtime type name for a value of an
	// abstract GraphQL type (interface or union).
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue serializes a scalar or enum value to a JSON-safe Go
	// value according to the GraphQL schema.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// SourceStream is the live sequence returned by a subscription root field.
type SourceStream interface {
	// Next blocks until the next event is available. It reports false once
	// the stream has ended or ctx is done.
	Next(ctx context.Context) (any, bool)
	// Close ends the stream. It is safe to call more than once.
	Close()
}
