package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/in/cli"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(cli.Execute(version, commit, date))
}
