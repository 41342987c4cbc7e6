// Package main is the entry point for the impactctl CLI.
package main

import "github.com/hkmcoding/landie-next-sub000/internal/cli"

func main() {
	cli.Execute()
}
