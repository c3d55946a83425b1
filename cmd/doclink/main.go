package main

import "doclink/internal/cli"

func main() {
	cli.Execute()
}
