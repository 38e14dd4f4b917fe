//go:build ignore

// This program writes the JSON schema for keelson configuration.
// Run with: go run gen/jsonschema.go > schema.json
package main

import (
	"fmt"
	"os"

	"github.com/wharflab/keelson/internal/config"
)

func main() {
	data, err := config.SchemaJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
