// Package files provides file system operations over the data layout.
//
// Discovery finds CSV files in the raw and processed directories and picks the
// most recently modified one. Manager stores uploads in the raw directory and
// resolves "raw/", "processed/" and "logs/" prefixed paths.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.DataDir)
//	csvs, err := discovery.FindCSVFiles("raw")
//	latest, ok := files.GetLatestFile(csvs)
package files
