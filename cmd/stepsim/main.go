package main

import "github.com/sarchlab/stepsim/cmd/stepsim/cmd"

func main() {
	cmd.Execute()
}
