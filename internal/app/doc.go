// Package app wires configuration, telemetry, the ingestion pipeline and the
// HTTP routers into one Application.
//
// An Application owns the ingestion ledger and the OpenTelemetry providers;
// callers must Close it. Routers and servers are built on demand so the API
// and the dashboard can run in separate processes or side by side under the
// supervisor.
package app
