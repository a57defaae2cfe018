// Package middleware holds the chi middleware shared by the upload API and
// the dashboard.
package middleware
