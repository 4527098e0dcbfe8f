package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/pedroasavelar91/nexus-familiar/internal/cli"
)

func main() {
	_ = godotenv.Load()
	os.Exit(cli.Execute(os.Args[1:], os.Stderr))
}
