package main

import (
	"github.com/stitchfit/tagscan/cmd/tagscan/cmd"
)

func main() {
	cmd.Execute()
}
