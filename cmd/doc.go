// Package cmd provides the command-line interface for assetry.
//
// This package implements all CLI commands using the Cobra framework on top
// of the template engine and asset provider pipeline.
//
// # Available Commands
//
//   - render: Print the provider output of a template, or render the page
//   - build: Compile every stale asset of every template
//   - watch: Recompile assets and reload templates as files change
//   - list: List applications, templates and inheritance chains
//   - config: Show or validate the effective configuration
//   - version: Show build information
//
// # Command Examples
//
//	// Styles of a template, as emitted in its <head>
//	assetry render homepage/index.html --group styles
//
//	// Full page with data
//	assetry render homepage/index.html --page --data '{"title":"Home"}'
//
//	// Precompile before deploying, exporting metrics for node_exporter
//	assetry build --metrics-file /var/lib/node_exporter/assetry.prom
//
// # Configuration Integration
//
// Commands respect configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (ASSETRY_*)
//  3. Configuration file (.assetry.yml)
//  4. Default values (lowest priority)
package cmd
