// admin-credentials generates the secrets the admin console needs:
// a bcrypt password hash for ADMIN_PASSWORD_HASH and, optionally, a test
// session token signed with ADMIN_JWT_SECRET for curl-based debugging.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"airdrop-backend/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	password := flag.String("password", "", "admin password to hash")
	issueToken := flag.Bool("token", false, "also issue a 24h test session token (requires ADMIN_JWT_SECRET)")
	username := flag.String("username", "admin", "username claim for the test token")
	flag.Parse()

	if *password == "" && !*issueToken {
		flag.Usage()
		os.Exit(2)
	}

	if *password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			fmt.Printf("Error hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("ADMIN_PASSWORD_HASH:")
		fmt.Println(string(hash))
		fmt.Println()
	}

	if *issueToken {
		secret := os.Getenv("ADMIN_JWT_SECRET")
		if secret == "" {
			fmt.Println("ADMIN_JWT_SECRET is not set")
			os.Exit(1)
		}

		now := time.Now()
		claims := middleware.AdminClaims{
			Username: *username,
			Role:     "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(now),
				NotBefore: jwt.NewNumericDate(now),
				Issuer:    "airdrop-backend-admin",
				Subject:   *username,
			},
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(secret))
		if err != nil {
			fmt.Printf("Error generating token: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Test session token (24h):")
		fmt.Println(signed)
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Printf("  curl -H \"Authorization: Bearer %s\" http://localhost:8080/api/admin/distributions\n", signed)
	}
}
