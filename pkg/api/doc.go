/*
Package api exposes the worker's trigger surface over HTTP.

The worker is a batch process at heart; this server is how anything else
pokes it: POST /api/v1/sync runs a pass and returns the pass report, POST
/api/v1/launches queues a deployment rollout and returns a pollable launch
handle, GET /api/v1/launches/:id polls it. /metrics and /healthz serve
Prometheus and liveness.
*/
package api
