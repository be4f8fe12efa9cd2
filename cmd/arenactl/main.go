// Command arenactl runs synthetic request workloads against arenas and
// reports how they used their memory.
//
//	arenactl run -config testdata/arena.yaml -workers 4 -requests 1000
//	arenactl config -config testdata/arena.yaml
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"

	"github.com/pavanmanishd/arena/v2"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "arenactl",
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
	log.SetDefault(logger)
	arena.SetLogger(logger.WithPrefix("arena"))
	arena.SetFatalHandler(func(err error) {
		log.Fatal("arena failure", "err", err)
	})

	app := &subcommands.DefaultApplication{
		Name:  "arenactl",
		Title: "arena workload runner",
		Commands: []*subcommands.Command{
			cmdRun(),
			cmdConfig(),
			subcommands.CmdHelp,
		},
	}
	os.Exit(subcommands.Run(app, nil))
}

// loadSettings reads path, or returns the defaults if path is empty.
func loadSettings(path string) (arena.Settings, error) {
	if path == "" {
		return arena.DefaultSettings(), nil
	}
	return arena.LoadSettings(path)
}
