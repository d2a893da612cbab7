package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/solranch/backend/internal/solana"
)

// keygen prints a fresh keypair for local development, most commonly the
// admin authority wired through ADMIN_SECRET_KEY.
func main() {
	quiet := flag.Bool("quiet", false, "print only the base58 secret key")
	flag.Parse()

	key, err := solana.NewKeypair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate keypair: %v\n", err)
		os.Exit(1)
	}

	if *quiet {
		fmt.Println(key.String())
		return
	}

	fmt.Printf("public key: %s\n", key.PublicKey().String())
	fmt.Printf("secret key: %s\n", key.String())
}
