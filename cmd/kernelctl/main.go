package main

import "github.com/centraunit/dikernel/internal/cli"

func main() {
	cli.Execute()
}
