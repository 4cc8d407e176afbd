package main

import "github.com/example/fanyu-assistant/cmd"

func main() {
	cmd.Execute()
}
