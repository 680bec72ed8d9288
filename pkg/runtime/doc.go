/*
Package runtime is the per-host container runtime client.

The reconciliation core speaks to hosts only through the Runtime and Dialer
interfaces: snapshot the host's containers, create-and-start one container,
stop, remove, stream logs, and launch an encoded deployment plan. Tests
substitute in-memory fakes; production uses DockerRuntime, a thin adapter
over the docker SDK that talks to each host's daemon over TCP with the
fleet-wide TLS client material.

Snapshots report timestamps as the ISO-8601 strings the docker API returns;
normalizing them to local wall-clock time is the reconciler's job, keeping
this package free of storage concerns.
*/
package runtime
