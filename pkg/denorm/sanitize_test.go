// SPDX-License-Identifier: Apache-2.0

package denorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"already valid", "cat_id", "cat_id"},
		{"uppercase", "CatID", "catid"},
		{"disallowed run collapses", "cat-name!!", "cat_name_"},
		{"leading digit gets underscore", "1name", "_1name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := sanitizeIdentifier(tt.raw)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeIdentifier_Empty(t *testing.T) {
	t.Parallel()

	_, err := sanitizeIdentifier("")
	require.Error(t, err)
	require.IsType(t, IdentifierEmptyError{}, err)
}

func TestSanitizeIdentifier_TooLong(t *testing.T) {
	t.Parallel()

	_, err := sanitizeIdentifier(strings.Repeat("a", 64))
	require.Error(t, err)
	require.IsType(t, IdentifierTooLongError{}, err)
}

func TestValidateIdentifier(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateIdentifier("cat_id"))
	require.IsType(t, IdentifierInvalidStartError{}, errType(t, ValidateIdentifier("1cat")))
	require.IsType(t, IdentifierInvalidCharsError{}, errType(t, ValidateIdentifier("cat-id")))
	require.IsType(t, IdentifierEmptyError{}, errType(t, ValidateIdentifier("")))
}

func errType(t *testing.T, err error) error {
	t.Helper()
	require.Error(t, err)
	return err
}
