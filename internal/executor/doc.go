// Package executor walks a selection set against a resolver and completes
// every field value according to its output type.
//
// # Overview
//
// The same algorithm decodes a server response and reads an operation from
// the normalized cache. The only difference between the two is the Resolver:
//   - For a response, the resolver reads the raw value of a field from the
//     decoded JSON object under the field's response key.
//   - For the cache, the resolver reads the field from the current record
//     under the field's cache key and substitutes References with the fields
//     of the referenced record.
//
// # Grouped field sets
//
// Before executing an object, the executor walks its selections and groups
// fields by response key, preserving first-seen order. Fragment spreads and
// inline fragments whose type condition is satisfied by the object's
// __typename are collected into the same grouped field set, so two fields
// with the same response key coming from different fragments execute once.
// A result extractor is recorded per original selection so that the flat
// per-selection result list can be rebuilt after the groups have executed;
// unsatisfied fragments and skipped selections produce nil.
//
// # Value completion
//
//   - NonNull: complete the inner type; a null raw value fails with
//     NullValueError.
//   - Null: a nil raw value of a nullable type completes to nil.
//   - List: the raw value must be an array; elements are completed with the
//     element index on the path.
//   - Object: the raw value must be an object. The sub-selections of every
//     field in the group are merged and executed once against it; the
//     results are chunked back per field and handed to the field's own
//     SelectionSet constructor.
//   - Scalar: the field's decoder converts the raw value.
//
// # Errors
//
// Resolver and completion failures abort the execution. The first field
// boundary an error crosses wraps it as a ResultError carrying the response
// path; outer boundaries pass it through unchanged.
//
// # Observers
//
// An Observer receives synchronous callbacks at well-defined points (field,
// object, list, element, leaf). The observer is a type parameter of the
// Executor so the no-op observer costs nothing. The normalizer and the
// dependency tracker in package normalize are observers.
package executor
