// Command tokengen prints a bearer token for local testing against a server
// sharing the same secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/uaarena/session-engine/internal/auth"
)

func main() {
	user := flag.String("user", "", "user id to embed (random uuid when empty)")
	name := flag.String("name", "", "optional username claim")
	secret := flag.String("secret", os.Getenv("UA_AUTH_JWT_SECRET"), "HS256 signing secret")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	flag.Parse()

	if *user == "" {
		*user = uuid.NewString()
	}

	verifier, err := auth.NewVerifier(*secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v (set -secret or UA_AUTH_JWT_SECRET)\n", err)
		os.Exit(1)
	}
	token, err := verifier.Issue(*user, *name, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user_id: %s\n", *user)
	fmt.Printf("token:   %s\n", token)
}
