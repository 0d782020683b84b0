// Command crawldex crawls a seed set of URLs, indexes the pages it
// fetches, and optionally renders a summary or answers a query against
// the resulting store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
