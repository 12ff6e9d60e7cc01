// Command keygen creates a new Solana wallet keypair and prints the
// address with its secret key in a form the bot's config accepts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mr-tron/base58"

	"solana-swap-bot/internal/solana"
)

func main() {
	format := flag.String("format", "json", "Secret key encoding: json (byte array, Solana CLI keyfile) or base58")
	out := flag.String("out", "", "Write the secret key to this file (mode 0600) instead of stdout")
	flag.Parse()

	logger := log.New(os.Stderr, "[keygen] ", log.LstdFlags)

	kp, err := solana.GenerateKeypair()
	if err != nil {
		logger.Fatalf("generate keypair: %v", err)
	}
	secret, err := encodeSecret(kp.SecretKey(), *format)
	if err != nil {
		logger.Fatal(err)
	}

	fmt.Printf("Public key: %s\n", kp.PublicKey())
	if *out == "" {
		fmt.Printf("Secret key: %s\n", secret)
		return
	}
	if err := os.WriteFile(*out, []byte(secret+"\n"), 0o600); err != nil {
		logger.Fatalf("write secret key: %v", err)
	}
	fmt.Printf("Secret key written to %s\n", *out)
}

func encodeSecret(secret []byte, format string) (string, error) {
	switch format {
	case "json":
		ints := make([]int, len(secret))
		for i, b := range secret {
			ints[i] = int(b)
		}
		raw, err := json.Marshal(ints)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case "base58":
		return base58.Encode(secret), nil
	default:
		return "", fmt.Errorf("unknown format %q (want json or base58)", format)
	}
}
