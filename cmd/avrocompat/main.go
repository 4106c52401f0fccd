package main

import "avrocompat/internal/cli"

func main() {
	cli.Execute()
}
