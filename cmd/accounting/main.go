// Command accounting records e-commerce sales in a local .xlsx ledger.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"accounting/internal/cli"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander)

	flag.Parse()
	ctx := context.Background()
	if flag.NArg() == 0 {
		os.Exit(int(cli.RunDefault(ctx)))
	}
	os.Exit(int(commander.Execute(ctx)))
}
