package main

import (
	"os"

	"github.com/soundprediction/graphfuse/cmd/graphfuse"
)

func main() {
	if err := graphfuse.Execute(); err != nil {
		os.Exit(1)
	}
}
