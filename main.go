// The main package for the crawlpool executable.
package main

import (
	"github.com/JakeFAU/realtime-proxy-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
