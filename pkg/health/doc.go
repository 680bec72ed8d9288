/*
Package health probes container liveness over HTTP.

The fleet convention is a GET against http://{host}:{status_port}/{status
endpoint}; any 2xx or 3xx answer counts as up, anything else as down. The
prober retries only transport failures, with a bounded budget (three
attempts of ten seconds each, five seconds apart, by default), so a probe
can never hold a reconciliation unit for more than the policy's worst case.

Application responses are never retried. Whether a 5xx deserves the same
retry treatment as a timeout is an open product question; until that is
settled the prober keeps the historical behavior of classifying any
received response immediately.
*/
package health
