package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/doeshing/litvis-go/internal/infrastructure/cli"
)

func main() {
	// A missing .env is not an error.
	_ = godotenv.Load()

	ctx := context.Background()
	root := cli.NewRootCmd(ctx, cli.Options{Verbose: isVerbose()})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func isVerbose() bool {
	return strings.EqualFold(os.Getenv("LITVIS_DEBUG"), "1") || strings.EqualFold(os.Getenv("LITVIS_DEBUG"), "true")
}
