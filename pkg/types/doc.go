/*
Package types defines the entity graph the reconciliation worker keeps in
sync: apps, their registry images, deployments, docker hosts, and the
containers observed on them.

Relationships:

	App 1──N Image          (keyed by layer id, tag mutable)
	App 1──N Deployment     (app + tag + environment)
	Host 1──N Container     (containers mirror one host's runtime state)
	Image 0..1──N Container (optional back-reference, resolved by id prefix)

Containers and the host status are observed state: they are rewritten by
every reconciliation pass. Apps, hosts, and deployments are operator-created
and only change through the CLI or trigger API. A deployment's container set
is derived per pass from the image reference and is never persisted as a
relation of its own.
*/
package types
