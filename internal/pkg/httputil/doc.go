// Package httputil carries the JSON envelope shared by every API handler.
//
// Success responses serialize the caller's payload directly; errors go out
// as ErrorResponse so clients can switch on a stable shape. Handlers pick
// the helper matching the failure class: BadRequest for rejected input,
// NotFound for direct lookups that miss, InternalError when the cause must
// stay server-side, and ErrorWithDetails when the caller is owed the
// underlying reason. Decode is the inbound half and writes the 400 itself.
package httputil
