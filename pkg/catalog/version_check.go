// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// MinimumServerVersion is the oldest Postgres server_num this adapter's DDL
// (generated-column-free ALTER TABLE ADD COLUMN, session temp tables with
// ON COMMIT DROP) is known to run against.
const MinimumServerVersion = "v12.0.0"

// CheckServerVersion queries the connected server's version and rejects
// anything older than MinimumServerVersion.
func (a *Adapter) CheckServerVersion(ctx context.Context, conn Queryer) error {
	rows, err := conn.QueryContext(ctx, `SHOW server_version`)
	if err != nil {
		return BackendError{Op: "query server_version", Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		return rows.Err()
	}
	var raw string
	if err := rows.Scan(&raw); err != nil {
		return BackendError{Op: "scan server_version", Err: err}
	}

	v := "v" + normalizeServerVersion(raw)
	if !semver.IsValid(v) {
		// Some builds report non-semver strings (e.g. "16devel"); skip the
		// check rather than fail a server we can't parse.
		return nil
	}

	if semver.Compare(v, MinimumServerVersion) < 0 {
		return fmt.Errorf("catalog: server_version %s is older than the minimum supported %s", raw, MinimumServerVersion)
	}
	return nil
}

// normalizeServerVersion turns a reported "15.3 (Debian 15.3-1)" into a
// semver-parseable "15.3.0" core. A pre-release string such as "16beta1"
// comes out as "16beta1.0.0", which semver rejects.
func normalizeServerVersion(raw string) string {
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		raw = raw[:i]
	}
	parts := strings.Split(raw, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return strings.Join(parts[:3], ".")
}
