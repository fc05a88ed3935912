// Package schemas embeds the JSON Schemas the validator ships with.
//
// Both documents keep their $defs indirection; they are resolved when an
// engine loads them.
package schemas

import (
	_ "embed"
)

// CloudConfig is the cloud-config user-data schema.
//
//go:embed cloud-config.schema.json
var CloudConfig []byte

// NetworkConfig is the network-config version 1 schema.
//
//go:embed network-config-v1.schema.json
var NetworkConfig []byte
