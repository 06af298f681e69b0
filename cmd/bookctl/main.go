package main

import "bookkeeper/internal/adapters/cli"

func main() {
	cli.Execute()
}
