// SPDX-License-Identifier: Apache-2.0

package csm

import "fmt"

// UnresolvableRefError is raised when simplify cannot resolve a $ref.
type UnresolvableRefError struct {
	Ref string
	Err error
}

func (e UnresolvableRefError) Unwrap() error { return e.Err }

func (e UnresolvableRefError) Error() string {
	return fmt.Sprintf("cannot resolve schema reference %q: %s", e.Ref, e.Err)
}

// UnsupportedSchemaError is raised when a schema node has no representable
// canonical type (e.g. an empty type list after dropping unknown keywords).
type UnsupportedSchemaError struct {
	Path string
}

func (e UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("schema at %q has no representable type", e.Path)
}
