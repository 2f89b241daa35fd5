package main

import "github.com/vsinha/tradeops/pkg/interfaces/cli/commands"

func main() {
	commands.Execute()
}
