// wzbank is the command line client for the Wenzhou Bank open-banking gateway.
package main

import "github.com/renqiukai/wzbank-go/internal/cli"

func main() {
	cli.Execute()
}
