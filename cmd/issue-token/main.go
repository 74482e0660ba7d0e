// Command issue-token mints a signed access token for an existing user id.
// It is developer tooling: the server accepts the token like one returned
// by POST /auth/login. With -generate-keys it writes a new key pair instead.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgo/jobboard/pkg/jwt"
)

func main() {
	privateKeyPath := flag.String("key", "./keys/private.pem", "Path to JWT private key")
	publicKeyPath := flag.String("pub", "./keys/public.pem", "Path to JWT public key (with -generate-keys)")
	generateKeys := flag.Bool("generate-keys", false, "Write a new RSA key pair and exit")
	userID := flag.String("user", "", "User ID for the token (required)")
	email := flag.String("email", "", "Email for the token")
	name := flag.String("name", "", "Full name for the token")
	issuer := flag.String("issuer", "jobboard", "JWT issuer")
	audience := flag.String("audience", "", "JWT audience (match JWT_AUDIENCE)")
	expMins := flag.Int("exp", 60, "Token expiration in minutes")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	if *generateKeys {
		for _, path := range []string{*privateKeyPath, *publicKeyPath} {
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating key directory: %v\n", err)
				os.Exit(1)
			}
		}
		if err := jwt.GenerateKeyPair(*privateKeyPath, *publicKeyPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s and %s\n", *privateKeyPath, *publicKeyPath)
		return
	}

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: *privateKeyPath,
		Issuer:         *issuer,
		Audience:       *audience,
		ExpirationMins: *expMins,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating JWT service: %v\n", err)
		os.Exit(1)
	}

	token, err := jwtService.Sign(jwt.Claims{
		UserID:   *userID,
		Email:    *email,
		FullName: *name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"accessToken": token,
			"tokenType":   "Bearer",
			"expiresIn":   *expMins * 60,
			"userId":      *userID,
		})
		return
	}

	expTime := time.Now().Add(time.Duration(*expMins) * time.Minute)
	fmt.Println("Access Token Issued")
	fmt.Println("===================")
	fmt.Printf("User ID:  %s\n", *userID)
	fmt.Printf("Expires:  %s\n", expTime.Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer $TOKEN\" http://localhost:8080/jobs/all")
}
