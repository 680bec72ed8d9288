/*
Package reconcile contains the core synchronization logic of the worker.

Three steps operate on one storage unit of work each:

  - SyncHost diffs a host's fresh runtime snapshot against its persisted
    containers and applies create/update/delete semantics. A container
    absent from the snapshot is deleted outright; there is no history. New
    containers are linked to an image by the 8-character layer id prefix,
    best-effort. A failed snapshot marks the host down and touches nothing
    else.

  - SyncImages merges the registry's image list for one app, keyed by layer
    id, and relinks containers whose image reference matches the app+tag.

  - LinkDeployment / UpdateDeploymentStatus re-derive a deployment's
    container set from the image reference and probe the running ones,
    persisting an up/down status per container.

All three are idempotent: re-running against unchanged inputs converges to
the same persisted state, which is what makes last-writer-wins racing
between a pass and a concurrent launch acceptable.
*/
package reconcile
