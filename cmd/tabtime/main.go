// Package main implements tabtime, the offline command-line companion to
// tabtime-host. It reads and maintains the same store: usage reports,
// pruning, the tracking toggle and schema migrations.
package main

import "os"

func main() {
	err := rootCmd.Execute()
	_ = closeApp()
	if err != nil {
		os.Exit(1)
	}
}
