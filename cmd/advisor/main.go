package main

import "github.com/ogulcanaydogan/energy-advisor/internal/cli"

func main() {
	cli.Execute()
}
