// Package services implements the business logic behind the HTTP handlers:
// storing and ingesting uploads, answering data queries, and preparing the
// dashboard views. Handlers stay thin; services own logging and error
// classification.
//
// Services return *errors.APIError or *errors.AppError values where the HTTP
// status matters, and plain wrapped errors otherwise. Loggers are injected
// through constructors.
package services
