// Package preflight provides readiness checks for the filesystem paths
// and network surfaces that flowline depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll before opening the store. If any
//     check fails, startup halts instead of limping into a half-broken run.
//   - The CLI "flowline status" command uses individual check functions
//     (CheckAPI, CheckDirectoryAccess) to display service health.
//
// Checks never mutate state: the database check inspects the file without
// opening it, and the daemon probe releases the lock immediately.
package preflight
