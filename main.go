package main

import (
	"os"

	"hubkeep/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
