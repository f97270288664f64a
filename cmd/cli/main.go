package main

import "github.com/mchmarny/nnpu/pkg/cli"

func main() {
	cli.Execute()
}
