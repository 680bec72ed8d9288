/*
Package storage is the persistence gateway over the entity graph, backed by
BoltDB.

Each entity type lives in its own bucket as a JSON value keyed by identity
(app name, hostname:port, layer id, app:tag:environment, container id).
Secondary access paths (containers by host, containers by image reference,
images by app) are linear scans; fleet sizes here are a handful of hosts, so
an index bucket would be more machinery than the data justifies.

Mutations made by reconciliation units go through a Txn, a staged unit of
work: puts and deletes accumulate in memory and are applied in a single
BoltDB transaction on Commit, or dropped on Rollback. One failed unit
therefore never leaves a half-written host or app behind, and concurrent
units (a launcher run racing a pass) settle last-writer-wins, which the
idempotent reconciler corrects on the next pass.
*/
package storage
