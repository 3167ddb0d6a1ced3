package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonesrussell/north-cloud/ocds-portal/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
