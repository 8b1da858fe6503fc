package main

import (
	"os"

	"github.com/promptctl/promptctl/cli"
)

func main() {
	os.Exit(cli.Execute())
}
