package main

import "github.com/bryanchriswhite/taskmonitor/cmd/taskmonitor/commands"

func main() {
	commands.Execute()
}
