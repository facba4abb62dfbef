// Package client provides HTTP access to a running flowline daemon.
//
// Dial probes the daemon before returning so callers can fall back to
// direct store access when no daemon is up. All methods speak the JSON
// contract from the api package and surface daemon-side failures as
// *APIError values carrying the transport status and flow error code.
package client
