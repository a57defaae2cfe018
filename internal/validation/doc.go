// Package validation checks raw input files handed to the pipeline outside
// the upload API.
package validation
