// cmd is the application entry point: a cobra CLI whose serve command wires
// together all layers and starts the HTTP server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
