package main

import "github.com/mcoot/islandrelay/internal/cli"

func main() {
	cli.Execute()
}
