package main

import (
	"github.com/loopfi/routerd/internal/cli"
)

func main() {
	cli.Execute()
}
