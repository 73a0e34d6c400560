// SPDX-License-Identifier: Apache-2.0

// Package dispatch reads the external message stream — one JSON object per
// line, tagged SCHEMA/RECORD/ACTIVATE_VERSION/STATE — and routes each
// message to its stream's buffered processor, triggering flattening,
// reconciliation, and persistence on every flush.
package dispatch

import "fmt"

// MalformedMessage marks a line that is not valid JSON, or is missing a
// field required for its declared type.
type MalformedMessage struct {
	Line int
	Err  error
}

func (e MalformedMessage) Error() string {
	return fmt.Sprintf("dispatch: malformed message at line %d: %v", e.Line, e.Err)
}

func (e MalformedMessage) Unwrap() error {
	return e.Err
}

// UnknownMessageType marks a message whose type field is not one of the
// four recognized tags.
type UnknownMessageType struct {
	Line int
	Type string
}

func (e UnknownMessageType) Error() string {
	return fmt.Sprintf("dispatch: unknown message type %q at line %d", e.Type, e.Line)
}

// UnknownStreamError marks a RECORD or ACTIVATE_VERSION message for a
// stream that has not yet had a SCHEMA message, including an
// ACTIVATE_VERSION that arrives before any SCHEMA for that stream.
type UnknownStreamError struct {
	Stream string
	Line   int
}

func (e UnknownStreamError) Error() string {
	return fmt.Sprintf("dispatch: stream %q referenced at line %d before any SCHEMA message", e.Stream, e.Line)
}
