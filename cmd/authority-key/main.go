package main

import (
	"os"

	"github.com/louisbranch/medvault/internal/platform/config"
	"github.com/louisbranch/medvault/internal/tools/authoritykey"
)

func main() {
	if err := authoritykey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate authority key: %v", err)
	}
}
