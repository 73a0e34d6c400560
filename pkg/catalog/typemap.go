// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"

	"github.com/pgsing/pgsing/pkg/csm"
)

// SQLType maps a leaf CSM kind to the Postgres type used to store it,
// per the remote column mapping table.
func SQLType(k csm.Kind) (string, error) {
	switch k {
	case csm.KindBoolean:
		return "boolean", nil
	case csm.KindInteger:
		return "bigint", nil
	case csm.KindNumber:
		return "double precision", nil
	case csm.KindString:
		return "text", nil
	case csm.KindDateTimeString:
		return "timestamp with time zone", nil
	case csm.KindObject, csm.KindArray:
		return "json", nil
	}
	return "", fmt.Errorf("catalog: kind %s has no SQL representation", k)
}

// KindFromFingerprint inverts SQLType for the fingerprint strings persisted
// in the column-metadata table, satisfying catalog_type(sql_type(T)) == T
// for every leaf CanonicalType.
func KindFromFingerprint(fingerprint string) (csm.Kind, error) {
	switch fingerprint {
	case "boolean":
		return csm.KindBoolean, nil
	case "integer":
		return csm.KindInteger, nil
	case "number":
		return csm.KindNumber, nil
	case "string":
		return csm.KindString, nil
	case "date-time":
		return csm.KindDateTimeString, nil
	case "object":
		return csm.KindObject, nil
	case "array":
		return csm.KindArray, nil
	}
	return 0, fmt.Errorf("catalog: unknown type fingerprint %q", fingerprint)
}

// Fingerprint is the inverse of KindFromFingerprint, persisted in the
// column-metadata table alongside OriginalPath.
func Fingerprint(k csm.Kind) string {
	switch k {
	case csm.KindBoolean:
		return "boolean"
	case csm.KindInteger:
		return "integer"
	case csm.KindNumber:
		return "number"
	case csm.KindString:
		return "string"
	case csm.KindDateTimeString:
		return "date-time"
	case csm.KindObject:
		return "object"
	case csm.KindArray:
		return "array"
	}
	return "string"
}
