// Package main is the entry point for the doscc CLI.
package main

import "doscc.dev/pkg/doscc/cmd"

func main() {
	cmd.Execute()
}
