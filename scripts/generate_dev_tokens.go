//go:build ignore

// Prints bearer tokens for local testing, signed with the server's JWT
// secret. Usage: go run scripts/generate_dev_tokens.go [-config path] user-1 user-2
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"booktrack/internal/core"
	"booktrack/pkg/config"
	"booktrack/pkg/database"
)

func main() {
	configPath := flag.String("config", "./configs/development.yaml", "server config file")
	seed := flag.Bool("seed", false, "also insert the users into the database")
	flag.Parse()

	users := flag.Args()
	if len(users) == 0 {
		users = []string{"dev-reader-1", "dev-reader-2", "dev-reader-3"}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *seed {
		if err := seedUsers(cfg, users); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed users: %v\n", err)
			os.Exit(1)
		}
	}

	verifier := core.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)

	fmt.Printf("Generating dev tokens (issuer %q, valid %s):\n\n", cfg.JWT.Issuer, cfg.JWT.Expiration)
	for _, userID := range users {
		token, expires, err := verifier.Issue(userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to issue token for %s: %v\n", userID, err)
			os.Exit(1)
		}
		fmt.Printf("User: %s\nExpires: %s\nToken: %s\n\n", userID, expires.Format("2006-01-02 15:04"), token)
	}
	fmt.Println("Store one with: booktrack config set user.token <token>")
}

// seedUsers creates rows for users that do not exist yet; identity lives
// elsewhere in production
func seedUsers(cfg *config.Config, users []string) error {
	db, err := database.NewDB(cfg.DatabaseConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	for _, id := range users {
		if _, err := db.ExecContext(context.Background(),
			`INSERT INTO users (id, nickname) VALUES ($1, $1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
			return fmt.Errorf("insert %s: %w", id, err)
		}
	}
	return nil
}
