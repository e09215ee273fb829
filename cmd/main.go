package main

import (
	"os"

	"github.com/rumorgraph/rumorgraph/cmd/rumorgraph"
)

func main() {
	if err := rumorgraph.Execute(); err != nil {
		os.Exit(1)
	}
}
