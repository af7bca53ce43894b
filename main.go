package main

import (
	"os"

	"github.com/parnexcodes/ddl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
