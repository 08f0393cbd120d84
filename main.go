package main

import "github.com/notargets/gosupermode/cmd"

func main() {
	cmd.Execute()
}
