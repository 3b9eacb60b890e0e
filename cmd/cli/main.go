package main

import "github.com/llrt/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
