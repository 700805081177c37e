package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/tourcrow/payments-backend/internal/services"
	"github.com/tourcrow/payments-backend/internal/utils"
)

func main() {
	adminPassword := flag.String("admin-password", "", "hash this password for ADMIN_PASSWORD_HASH")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("Secret Generator for Tourcrow Payments")
	fmt.Println("===========================================")
	fmt.Println()

	webhookSecret, jwtSecret, err := utils.GenerateDeploySecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("✅ Secrets generated successfully!")
	fmt.Println()
	fmt.Println("Add these to your .env file or deployment secrets.")
	fmt.Println("Paste the webhook secret into the Razorpay dashboard as well:")
	fmt.Println()
	fmt.Printf("RAZORPAY_WEBHOOK_SECRET=%s\n", webhookSecret)
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)

	if *adminPassword != "" {
		hash, err := services.HashPassword(*adminPassword)
		if err != nil {
			log.Fatalf("Failed to hash admin password: %v", err)
		}
		// Single quotes keep the $ signs of the bcrypt hash intact in shells
		fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
	}

	fmt.Println()
	fmt.Println("⚠️  IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
