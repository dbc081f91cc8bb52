package main

import "github.com/stagecam/stagecam/cmd/stagecam/commands"

func main() {
	commands.Execute()
}
