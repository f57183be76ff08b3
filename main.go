package main

import "github.com/aure/fpdash/cmd"

func main() {
	cmd.Execute()
}
