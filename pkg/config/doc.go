/*
Package config loads the worker configuration from a single YAML file.

One file carries everything the worker needs: the bbolt data directory, the
private registry endpoint and credentials, the docker TLS client material
shared by all hosts, the reconciliation interval, the health probe retry
policy, the launcher pool size, and the trigger API listen address.

Defaults cover everything except the registry section, which is required:
the registry username doubles as the image namespace (user/app:tag) used to
link containers back to images, so there is no useful way to run without it.
*/
package config
