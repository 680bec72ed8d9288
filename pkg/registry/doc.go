/*
Package registry lists an app's images from the private docker registry.

The worker supports exactly one registry, configured at startup together
with the credentials sent on every request. The tags endpoint returns one
entry per tag, each naming the layer id the tag currently points at; that
layer id is the identity under which images are persisted.
*/
package registry
