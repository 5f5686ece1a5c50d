package main

import (
	"fmt"
	"os"

	"github.com/tjfontaine/ragchat-gateway/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <api-key>")
		fmt.Println("Prints the SHA-256 hash of the given API key for use in config.yaml")
		os.Exit(1)
	}

	keyHash := auth.HashAPIKey(os.Args[1])

	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("auth:\n")
	fmt.Printf("  api_key_hashes:\n")
	fmt.Printf("    - \"%s\"\n", keyHash)
}
