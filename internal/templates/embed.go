// Package templates embeds the starter files that orchestrate init writes
// into a project: a commented orchestrate.yml and a minimal regression
// battery.
package templates

import "embed"

// FS contains the embedded starter files at the package root.
//
//go:embed orchestrate.yml battery.yaml
var FS embed.FS

// Names of the embedded files, in the order init writes them.
const (
	ConfigName  = "orchestrate.yml"
	BatteryName = "battery.yaml"
)
