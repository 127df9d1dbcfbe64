package main

import (
	"context"
	"os"

	_ "time/tzdata"

	"analyzeit/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
