// SPDX-License-Identifier: Apache-2.0

package denorm

import "fmt"

// IdentifierEmptyError is raised when a stream or column name sanitizes to
// the empty string.
type IdentifierEmptyError struct {
	Path string
}

func (e IdentifierEmptyError) Error() string {
	return fmt.Sprintf("identifier at %q is empty after sanitization", e.Path)
}

// IdentifierTooLongError is raised when a raw identifier exceeds 63 bytes.
type IdentifierTooLongError struct {
	Name string
}

func (e IdentifierTooLongError) Error() string {
	return fmt.Sprintf("identifier %q exceeds the 63-character limit", e.Name)
}

// IdentifierInvalidStartError is raised by ValidateIdentifier (not by the
// sanitizer, which repairs this case) when a name does not begin with
// [a-z_].
type IdentifierInvalidStartError struct {
	Name string
}

func (e IdentifierInvalidStartError) Error() string {
	return fmt.Sprintf("identifier %q does not start with [a-z_]", e.Name)
}

// IdentifierInvalidCharsError is raised by ValidateIdentifier when a name
// contains characters outside [a-z0-9_].
type IdentifierInvalidCharsError struct {
	Name string
}

func (e IdentifierInvalidCharsError) Error() string {
	return fmt.Sprintf("identifier %q contains characters outside [a-z0-9_]", e.Name)
}

// UnrepresentableFieldError is raised when the denormalizer encounters a
// field whose canonical type it cannot place in a table (e.g. a bare Null
// with no other variant).
type UnrepresentableFieldError struct {
	Path string
}

func (e UnrepresentableFieldError) Error() string {
	return fmt.Sprintf("field at %q has no representable column type", e.Path)
}
