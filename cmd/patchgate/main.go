package main

import "github.com/patchgate-project/patchgate/internal/cli"

func main() {
	cli.Execute()
}
