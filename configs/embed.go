// Package configs provides the embedded configuration template for taxidx.
//
// The template is embedded at build time so `taxidx config init` works from
// any distribution. Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (internal/config NewConfig)
//  2. User config (~/.config/taxidx/config.yaml)
//  3. Project config (.taxidx.yaml, or --config)
//  4. Environment variables (TAXIDX_*)
//  5. Command-line flags
package configs

import _ "embed"

// ConfigTemplate is the commented example written by `taxidx config init`.
//
//go:embed taxidx.example.yaml
var ConfigTemplate string
