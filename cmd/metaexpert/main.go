// Command metaexpert answers questions with a coordinator that delegates to a
// direct expert or a web-searching expert.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
