package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/cli"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	root := cli.NewRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
