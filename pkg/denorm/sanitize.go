// SPDX-License-Identifier: Apache-2.0

package denorm

import "strings"

const maxIdentifierLength = 63

// sanitizeIdentifier lowercases raw, replaces runs of disallowed
// characters with a single underscore, and prepends an underscore if the
// result would not otherwise start with [a-z_]. Raw identifiers longer
// than 63 bytes are rejected outright rather than truncated, since
// truncation could silently collide two distinct names.
func sanitizeIdentifier(raw string) (string, error) {
	if raw == "" {
		return "", IdentifierEmptyError{Path: raw}
	}
	if len(raw) > maxIdentifierLength {
		return "", IdentifierTooLongError{Name: raw}
	}

	lower := strings.ToLower(raw)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range lower {
		if isAllowedIdentChar(r) {
			b.WriteRune(r)
			prevUnderscore = false
		} else if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}

	out := b.String()
	if out == "" {
		return "", IdentifierEmptyError{Path: raw}
	}
	if !isLegalStart(rune(out[0])) {
		out = "_" + out
	}

	return out, nil
}

// ValidateIdentifier checks that name is already a valid, sanitized
// identifier, without repairing it. Used to validate names recovered from
// catalog metadata.
func ValidateIdentifier(name string) error {
	if name == "" {
		return IdentifierEmptyError{Path: name}
	}
	if len(name) > maxIdentifierLength {
		return IdentifierTooLongError{Name: name}
	}
	if !isLegalStart(rune(name[0])) {
		return IdentifierInvalidStartError{Name: name}
	}
	for _, r := range name {
		if !isAllowedIdentChar(r) {
			return IdentifierInvalidCharsError{Name: name}
		}
	}
	return nil
}

func isAllowedIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

func isLegalStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || r == '_'
}
