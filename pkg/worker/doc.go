/*
Package worker drives the fleet-wide reconciliation pass.

A pass is a single stateless sweep: for every app, sync its registry images
and refresh each deployment's derived containers and health statuses; then
reconcile container state for every host in the fleet. Every unit of work
runs in its own storage transaction behind its own failure boundary, so a
dead registry or an unreachable host costs exactly one rolled-back unit.

SyncAll returns a Report with one result per unit instead of swallowing
failures into logs: callers (the CLI, the trigger API) can tell a clean
pass from a degraded one. Only the outermost boundary is fatal: if the
store cannot even list the apps, the pass aborts with the report's Fatal
field set.

The worker can also run as a loop, firing a pass at a fixed interval until
stopped. Passes are serialized per worker; a concurrently running launcher
may race on the same rows, which idempotent reconciliation absorbs.
*/
package worker
