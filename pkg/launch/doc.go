/*
Package launch rolls deployments out across their target hosts.

A launch is queued onto a fixed-size worker pool and the caller immediately
gets a Handle: a pollable status with per-host results, an error, and a
Done channel. That replaces an untracked fire-and-forget thread with
something the trigger API can report on, while still never blocking the
caller on a slow multi-host rollout.

The deployment and its transitive dependency metadata are serialized once;
each target host then receives the same encoded plan in its own
create-and-start call. Hosts fail independently: a refused connection on
one host is recorded on the handle and the rollout proceeds to the next.
After all hosts are attempted, the launcher reconciles the target hosts and
refreshes the deployment's container statuses to capture the immediate
post-launch state, again isolating each step's failure.

Once started, a launch runs to completion; there is no cancellation.
*/
package launch
