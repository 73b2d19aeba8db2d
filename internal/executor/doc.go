// Package executor implements a GraphQL executor that resolves fields
// depth-first through a Runtime, with explicit hooks for field resolution,
// abstract-type resolution and leaf serialization.
//
// # Preparation
//
// Before execution, the executor:
//  1. Chooses the operation (by name, or the only one when unnamed).
//  2. Coerces variables from the provided input against the operation's
//     variable definitions. Errors here stop execution and are reported with
//     the BAD_USER_INPUT code.
//  3. Determines the root object type from the operation
//     (Query/Mutation/Subscription) and collects the root selection set.
//
// Requests that do not come from a parsed document use FieldRequest: a single
// root field with already-typed arguments and a selection for its result.
//
// # Execution Model
//
// Fields are collected in request order, honouring aliases, fragments,
// inline fragments (including type conditions on interfaces and unions) and
// @skip/@include. For every collected field the executor:
//
//	A. Validates the arguments against the field's declared arguments.
//	   Unknown arguments, missing or null required arguments and values of
//	   the wrong type fail the field with a gqlerr.ArgumentError.
//	B. Calls Runtime.ResolveField with the parent value and typed arguments.
//	   Panics are recovered and reported as internal errors.
//	C. Completes the value against the field type and recurses into object
//	   values using the field's sub-selection.
//
// Sibling fields run in request order. Fields whose schema.Field.Concurrent
// flag is set run in parallel with each other (bounded by WithMaxConcurrency),
// except on the root of a mutation, whose fields always run one after the
// other. Each field keeps its own error list; lists are merged in request
// order once all siblings finished, so error attribution does not depend on
// scheduling.
//
// # Value Completion
//
//   - Non-Null: unwrap and complete the inner type. If the inner completion
//     produced null, record a Non-Null violation and propagate null upwards.
//   - Null: nil results (including typed nils) produce GraphQL null.
//   - List: complete each element with index-aware paths. A null element for
//     a Non-Null inner type nullifies the entire list value.
//   - Leaf (Scalar/Enum): defer to Runtime.SerializeLeafValue.
//   - Abstract (Interface/Union): defer to Runtime.ResolveType, check the
//     result is a possible type, then complete as an object.
//   - Object: execute the merged sub-selection into an Object, which keeps
//     request order when encoded to JSON.
//
// # Errors and Partial Success
//
// Errors are accumulated as located GraphQL errors (message, path and
// extensions). gqlerr.ArgumentError and gqlerr.ResolverError keep their code
// and kind; any other error is reported as an internal ResolverError. A
// failed nullable field becomes null while its siblings still resolve. A
// failed Non-Null field nulls the nearest nullable ancestor, and when that
// is the root the whole data entry is null.
//
// # Subscriptions
//
// Subscribe resolves the single root field of a subscription operation. Its
// resolver must return a SourceStream. The returned ResponseStream pulls one
// event at a time and completes it as the root field's value, resolving the
// nested selection against the event. Closing the ResponseStream closes the
// source.
package executor
