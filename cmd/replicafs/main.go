package main

import (
	_ "embed"
	"os"
	"strings"
)

//go:embed VERSION
var version string

// Version is the replicafs release.
var Version = strings.TrimSpace(version)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
