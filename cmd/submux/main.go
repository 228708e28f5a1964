package main

import "submux/internal/app/cli"

func main() {
	cli.Execute()
}
