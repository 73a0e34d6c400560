// SPDX-License-Identifier: Apache-2.0

package flatten

import "fmt"

// RootTableMissingError is raised when Flatten is called with a table set
// that has no root table for the given stream name.
type RootTableMissingError struct {
	Stream string
}

func (e RootTableMissingError) Error() string {
	return fmt.Sprintf("no root table denormalized for stream %q", e.Stream)
}
