package main

import (
	"os"

	"github.com/kmathy/carlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
