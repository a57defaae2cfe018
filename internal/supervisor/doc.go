// Package supervisor runs long-lived tasks, such as the API server, the
// dashboard and the nightly scheduler, inside one process with ordered startup
// and a bounded shutdown grace.
package supervisor
