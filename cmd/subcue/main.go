package main

import "github.com/forPelevin/subcue/internal/cli"

func main() {
	cli.Main()
}
