package main

import (
	"os"

	"github.com/kintai-hq/kintai-client/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
