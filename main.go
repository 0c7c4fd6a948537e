package main

import (
	"os"

	"github.com/harness/fetch-artifact/cmd"
)

// version is set via ldflags during build
var version = "dev"

func main() {
	os.Exit(cmd.Execute(os.Args[1:], version))
}
