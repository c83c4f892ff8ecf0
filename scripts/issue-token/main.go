package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/user"
	"github.com/enrollhub/enrollment-server-go/internal/utils/jwt"
	"github.com/enrollhub/enrollment-server-go/pkg/config"
)

func main() {
	email := flag.String("email", "", "email of the user to issue a token for")
	userID := flag.String("id", "", "user ID to issue a token for (alternative to -email)")
	expiry := flag.Duration("expiry", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *email == "" && *userID == "" {
		fmt.Println("usage: issue-token -email user@example.com [-expiry 24h]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var u user.User
	if *email != "" {
		err = db.Where("email = ?", *email).First(&u).Error
	} else {
		id, parseErr := uuid.Parse(*userID)
		if parseErr != nil {
			log.Fatalf("Invalid user ID: %v", parseErr)
		}
		err = db.Where("id = ?", id).First(&u).Error
	}
	if err != nil {
		log.Fatalf("Failed to find user: %v", err)
	}
	if !u.Active {
		log.Fatalf("User %s is inactive", u.Email)
	}

	token, err := jwt.GenerateAccessToken(u.ID, cfg.JWTSecret, *expiry)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("User:    %s (%s)\n", u.Email, u.UserType)
	fmt.Printf("Expires: %s\n", time.Now().Add(*expiry).Format(time.RFC3339))
	fmt.Printf("Token:   %s\n", token)
}
