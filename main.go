package main

import "github.com/hanash-dl/hanash/cmd"

func main() {
	cmd.Execute()
}
