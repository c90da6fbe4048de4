package main

import "qbank/internal/cli"

func main() {
	cli.Execute()
}
