package main

import "medsoc-cms/pkg/commands"

func main() {
	commands.Execute()
}
