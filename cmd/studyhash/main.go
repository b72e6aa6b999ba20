package main

import "github.com/conorfennell/studyhash/cmd/studyhash/cmd"

func main() {
	cmd.Execute()
}
