package main

import "github.com/abdoulgee/skylinee/internal/cli"

func main() {
	cli.Execute()
}
