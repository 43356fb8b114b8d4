package main

import (
	"os"

	"github.com/balajialg/Datahub-Usage-Analysis/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
