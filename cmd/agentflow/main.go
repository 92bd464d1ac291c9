package main

import "github.com/emiliopalmerini/agentflow/internal/cli"

func main() {
	cli.Execute()
}
