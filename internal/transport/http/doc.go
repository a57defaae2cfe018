// Package http implements the HTTP handlers of the upload API and the
// dashboard. Handlers stay thin: they parse the request, call a service and
// render the result, sending every failure through errors.ErrorHandler so
// clients always receive RFC 7807 problem details.
//
// Each handler depends on a narrow interface of the service it calls, which
// keeps the handlers testable with small fakes.
package http
