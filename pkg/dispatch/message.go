// SPDX-License-Identifier: Apache-2.0

package dispatch

import "encoding/json"

// rawMessage is the wire shape of one input line. Fields not relevant to
// Type are left zero.
type rawMessage struct {
	Type string `json:"type"`

	Stream string `json:"stream"`

	Schema        json.RawMessage `json:"schema,omitempty"`
	KeyProperties []string        `json:"key_properties,omitempty"`

	Record        json.RawMessage `json:"record,omitempty"`
	Version       *int64          `json:"version,omitempty"`
	Sequence      *int64          `json:"sequence,omitempty"`
	TimeExtracted *string         `json:"time_extracted,omitempty"`

	Value json.RawMessage `json:"value,omitempty"`
}

const (
	typeSchema          = "SCHEMA"
	typeRecord          = "RECORD"
	typeActivateVersion = "ACTIVATE_VERSION"
	typeState           = "STATE"
)
