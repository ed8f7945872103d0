package main

import "github.com/jmcleod/pyre/cmd/pyre/cmd"

func main() {
	cmd.Execute()
}
