package main

import (
	"flag"
	"os"

	"github.com/louisbranch/medvault/internal/platform/config"
	"github.com/louisbranch/medvault/internal/tools/minttoken"
)

func main() {
	cfg, err := minttoken.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := minttoken.Run(cfg, os.Stdout); err != nil {
		config.Exitf("mint token: %v", err)
	}
}
