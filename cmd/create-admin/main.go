// Command create-admin seeds an admin account. Admin accounts are only ever
// created out-of-band; there is no API-level privilege escalation path.
package main

import (
	"flag"
	"log"

	"pathpal-api/internal/config"
	"pathpal-api/internal/credentials"
	"pathpal-api/internal/database"
)

func main() {
	username := flag.String("username", "admin", "admin username")
	email := flag.String("email", "admin@pathpal.com", "admin email")
	phone := flag.String("phone", "1234567890", "admin phone number")
	password := flag.String("password", "", "admin password (required)")
	flag.Parse()

	if *password == "" {
		log.Fatal("A password is required: -password <value>")
	}

	cfg := config.LoadConfig()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	hashedPassword, err := credentials.Hash(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	_, err = db.DB.Exec(`
		INSERT INTO users (username, email, phone_number, password_hash, user_type, agreed_terms, agreed_privacy)
		VALUES ($1, $2, $3, $4, 'admin', TRUE, TRUE)
	`, *username, *email, *phone, hashedPassword)
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	log.Printf("Admin user %q created successfully", *username)
}
