/*
Package events is a small in-process pub/sub broker for fleet events.

The worker and launcher publish what they observe (a host going down,
containers appearing or disappearing, images synced, deployments launched,
passes completing); subscribers consume them on buffered channels. Delivery
is best-effort by design: a slow subscriber loses events rather than ever
stalling a reconciliation pass.
*/
package events
