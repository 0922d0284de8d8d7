package main

import (
	"github.com/kaleidoscope-bio/kaleido-go/cmd"
)

func main() {
	cmd.Execute()
}
