package main

import "cpstats-backend/cmd/cpstats-cli/cmd"

func main() {
	cmd.Execute()
}
