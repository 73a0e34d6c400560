// SPDX-License-Identifier: Apache-2.0

// Package catalog discovers existing table and column metadata from the
// target Postgres-compatible backend and exposes a transactional DDL
// interface over it.
package catalog

import "github.com/pgsing/pgsing/pkg/csm"

// RemoteColumn is one physical column as discovered on the backend, with
// its pre-sanitization origin recovered from the metadata table.
type RemoteColumn struct {
	Name         string   `json:"name"`
	SQLType      string   `json:"sql_type"`
	Nullable     bool     `json:"nullable"`
	IsPK         bool     `json:"is_pk"`
	OriginalPath string   `json:"original_path"`
	Kind         csm.Kind `json:"kind"`
	SplitOf      string   `json:"split_of,omitempty"`
}

// RemoteTable is the discovered shape of one live table.
type RemoteTable struct {
	Name       string         `json:"name"`
	Columns    []RemoteColumn `json:"columns"`
	PrimaryKey []string       `json:"primary_key,omitempty"`
}

// Column looks up a column by physical name.
func (t RemoteTable) Column(name string) (RemoteColumn, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return RemoteColumn{}, false
}
