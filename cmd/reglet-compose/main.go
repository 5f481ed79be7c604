package main

import (
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/reglet-dev/reglet-compose/internal/cli"
)

func main() {
	os.Exit(cli.Run(cli.IOStreams{In: os.Stdin, Out: os.Stdout, ErrOut: os.Stderr}, os.Args[1:]))
}
