/*
Package log provides structured logging for Shepherd using zerolog.

The package wraps zerolog behind a global logger initialized once via
log.Init, with console output for interactive use and JSON output for
production. Child-logger helpers (WithComponent, WithHost, WithApp,
WithDeployment) attach the fields the reconciliation loops log under, so a
full pass can be filtered per unit of work after the fact.

All failure handling in the worker surfaces through this package: unit
failures are logged with their cause and recorded in the pass report, never
re-panicked.
*/
package log
