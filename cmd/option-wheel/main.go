// Command option-wheel backtests the options wheel strategy on daily
// prices, serves the backtester over HTTP and inspects stored runs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}
