package main

import "ttsgate/internal/cli"

func main() {
	cli.Execute()
}
