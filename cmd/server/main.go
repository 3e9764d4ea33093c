// Package main is the entry point of the task tracker: the Telegram update
// loop, the hourly extraction pass and the admin API, plus operator
// subcommands for migrations, one-off processing and token minting.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
