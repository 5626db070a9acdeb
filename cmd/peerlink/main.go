package main

import "github.com/rudransh-shrivastava/peer-link/internal/cli"

func main() {
	cli.Execute()
}
