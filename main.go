package main

import "github.com/agentic-research/dbref/cmd"

func main() {
	cmd.Execute()
}
