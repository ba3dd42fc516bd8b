// Package openapi embeds the explorer HTTP API description for runtime
// distribution.
package openapi

import _ "embed"

// ExplorerSpec is the OpenAPI document for the /api/v1 routes.
//
//go:embed explorer.yaml
var ExplorerSpec []byte

// Document returns a copy of the embedded OpenAPI YAML.
func Document() []byte {
	return append([]byte(nil), ExplorerSpec...)
}
