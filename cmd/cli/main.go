package main

import "geochat/cmd/cli/command"

func main() {
	command.Execute()
}
