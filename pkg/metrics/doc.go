/*
Package metrics exposes the worker's Prometheus metrics.

Counters and histograms cover the three things operators page on: pass
health (count, duration, per-unit outcomes), reconciliation churn (container
creates/updates/deletes, hosts by status), and rollout activity (launches
and per-host launch failures, probe outcomes). Everything registers at init
and is served by Handler on the trigger API's /metrics route.
*/
package metrics
