// Package templates embeds the starter files written by cfedge init.
package templates

import "embed"

//go:embed cfedge.yaml
var FS embed.FS
