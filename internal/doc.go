// Package internal contains the core implementation packages for assetry.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the assetry CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - provider: Inheritance chains, providers and the run aggregator
//   - build: Staleness checks and atomic, single-flight compiles
//   - renderer: html/template engine with template inheritance
//   - registry: Application directories and their templates
//   - static: Filesystem paths to public URLs
//   - config: Configuration management with validation and security
//   - errors: Typed errors and the error collector
//   - logging: Structured logging over log/slog
//   - metrics: Prometheus collectors for compiles and runs
//   - watcher: File system monitoring with debouncing
//
// # Inter-Package Communication
//
//   - The renderer installs the provider settings built from the configuration
//   - Providers reach templates only through the provider.Handle interface
//   - Compile providers delegate to a shared build.Builder
//   - The watcher rescans the registry and triggers precompiles
//
// # Security Considerations
//
//   - Config validates application paths and provider commands
//   - Build runs only allowlisted commands, without a shell
//   - The renderer rejects template names that leave the template directory
//   - Inline providers use html/template so data is escaped for its context
package internal
