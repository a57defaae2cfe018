// Package commands implements the flsd command line.
package commands
