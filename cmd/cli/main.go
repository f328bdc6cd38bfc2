package main

import "github.com/callgrind-analysis/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
