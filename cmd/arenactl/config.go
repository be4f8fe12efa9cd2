package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"gopkg.in/yaml.v3"
)

func cmdConfig() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "config [-config <file>]",
		ShortDesc: "prints the effective arena settings",
		LongDesc:  "Prints the arena settings after applying defaults to the given YAML file.",
		CommandRun: func() subcommands.CommandRun {
			r := &configRun{}
			r.Flags.StringVar(&r.path, "config", "", "YAML settings file")
			return r
		},
	}
}

type configRun struct {
	subcommands.CommandRunBase
	path string
}

func (c *configRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) != 0 {
		fmt.Fprintf(a.GetErr(), "%s: position arguments not expected\n", a.GetName())
		return 1
	}
	s, err := loadSettings(c.path)
	if err != nil {
		log.Error("load settings", "err", err)
		return 1
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		log.Error("marshal settings", "err", err)
		return 1
	}
	fmt.Fprint(a.GetOut(), string(out))
	return 0
}
