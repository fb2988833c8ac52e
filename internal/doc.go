// Package internal contains the core implementation packages for melodi.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the functionality behind the melodi CLI.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - expr: Expression lexer, parser and evaluator over scoped values
//   - dom: Headless document on x/net/html with queries and event dispatch
//   - directive: Placeholder interpolation and v- directive processing
//   - slot: Projection of captured children into named and default slots
//   - reactive: Change records and the batched update scheduler
//   - component: Definitions, instances, lifecycle, bindings and the App
//   - store: Shared state with declarative actions and optional persistence
//   - router: Path routes rendered into router-view
//   - registry: Declared component index and dependency cycle detection
//   - manifest: YAML component manifest loading, building and validation
//   - renderer: Builds a mounted App from a page, manifest and configuration
//   - server: Live server with per-page sessions over a websocket
//   - websocket: Client hub, origin checks and JSON message pumps
//   - watcher: Debounced file system monitoring for reloads
//   - config, logging, errors, version: Ambient configuration, structured
//     logs, typed errors with the error overlay, and build information
//
// # Data Flow
//
// A page is parsed into a dom.Document, the manifest registers component
// definitions on a component.App, and mounting walks the document for
// registered tags. State writes are recorded by reactive and applied in
// batches on Flush, re-rendering only the affected instances. The live
// server keeps one mounted App per page load and sends the re-rendered body
// back after every event.
package internal
