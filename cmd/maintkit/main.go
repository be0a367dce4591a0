package main

import (
	"fmt"
	"os"

	"github.com/fieldsight/maintkit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "maintkit:", err)
		os.Exit(1)
	}
}
