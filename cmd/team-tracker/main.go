package main

import (
	"context"
	"os"

	"Mansoor88-6/team-time-tracker/internal/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
