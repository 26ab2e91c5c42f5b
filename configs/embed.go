// Package configs embeds the annotated configuration template written by
// 'seekhost config init'.
package configs

import _ "embed"

// UserConfigTemplate is the commented default configuration.
//
//go:embed config.example.yaml
var UserConfigTemplate string
