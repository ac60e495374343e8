package main

import (
	"github.com/chernistry/tavily/internal/cli"
)

func main() {
	cli.Execute()
}
