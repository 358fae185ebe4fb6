package main

import "vetsync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
