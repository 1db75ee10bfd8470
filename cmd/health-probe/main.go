package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/louisbranch/medvault/internal/platform/config"
	"github.com/louisbranch/medvault/internal/tools/healthprobe"
)

func main() {
	cfg, err := healthprobe.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := healthprobe.Run(context.Background(), cfg, log.Printf); err != nil {
		config.Exitf("health probe: %v", err)
	}
}
