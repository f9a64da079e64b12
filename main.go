package main

import (
	"os"

	"github.com/bassemshaker/phpsrv/internal/cli"
)

const version = "0.1.0"

func main() {
	os.Exit(cli.Execute(version))
}
