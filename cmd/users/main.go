// Package main provides account utilities: creating users, listing them and
// issuing API tokens for them.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"feedpulse/internal/config"
	"feedpulse/internal/database"
	"feedpulse/internal/middleware"
	"feedpulse/internal/models"
	"feedpulse/internal/repository"
	"feedpulse/internal/validation"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/users create <username>     - Create a user")
		fmt.Println("  go run ./cmd/users list                  - List users")
		fmt.Println("  go run ./cmd/users token <user_id> [ttl] - Issue a bearer token (default ttl 24h)")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	switch os.Args[1] {
	case "create":
		if len(os.Args) < 3 {
			log.Fatal("Usage: go run ./cmd/users create <username>")
		}
		createUser(ctx, users, os.Args[2])
	case "list":
		listUsers(ctx, users)
	case "token":
		if len(os.Args) < 3 {
			log.Fatal("Usage: go run ./cmd/users token <user_id> [ttl]")
		}
		ttl := 24 * time.Hour
		if len(os.Args) > 3 {
			if ttl, err = time.ParseDuration(os.Args[3]); err != nil {
				log.Fatalf("Invalid ttl %q: %v", os.Args[3], err)
			}
		}
		issueToken(ctx, users, cfg.JWTSecret, os.Args[2], ttl)
	default:
		log.Fatalf("Unknown command: %s", os.Args[1])
	}
}

func createUser(ctx context.Context, users repository.UserRepository, username string) {
	username = strings.TrimSpace(username)
	if err := validation.Username(username); err != nil {
		log.Fatal(err)
	}
	user := &models.User{Username: username}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	fmt.Printf("Created %s (ID: %d)\n", user.Username, user.ID)
}

func listUsers(ctx context.Context, users repository.UserRepository) {
	list, err := users.List(ctx, 500, 0)
	if err != nil {
		log.Fatalf("Failed to fetch users: %v", err)
	}
	if len(list) == 0 {
		fmt.Println("No users found")
		return
	}
	for _, u := range list {
		fmt.Printf("ID: %d | Username: %s | Created: %s\n", u.ID, u.Username, u.CreatedAt.Format(time.RFC3339))
	}
}

func issueToken(ctx context.Context, users repository.UserRepository, secret, rawID string, ttl time.Duration) {
	id, err := strconv.ParseUint(rawID, 10, 32)
	if err != nil || id == 0 {
		log.Fatalf("Invalid user ID %q", rawID)
	}
	user, err := users.GetByID(ctx, uint(id))
	if err != nil {
		log.Fatalf("Lookup failed: %v", err)
	}
	token, err := middleware.SignToken(secret, user.ID, ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
