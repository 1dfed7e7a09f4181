package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"compliance_flow_app_go/config"
	"compliance_flow_app_go/db"
	"compliance_flow_app_go/logger"
	"compliance_flow_app_go/models"
	"compliance_flow_app_go/services"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

func main() {
	issueToken := flag.Bool("token", false, "print a bearer token for the new user")
	tokenTTL := flag.Duration("ttl", services.DefaultTokenTTL, "lifetime of the printed token")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.Environment, cfg.LogLevel)

	// Initialize database
	err := db.Initialize(db.Options{
		DBPath:      cfg.DBPath,
		Environment: cfg.Environment,
		TursoURL:    cfg.TursoDatabaseURL,
		TursoToken:  cfg.TursoAuthToken,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(&models.User{}, &models.Role{}); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	if err := services.SeedRoles(db.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed roles")
	}

	reader := bufio.NewReader(os.Stdin)

	// Get user details
	fmt.Println("=== Create New User ===")
	fmt.Println()

	fmt.Print("Name: ")
	name, _ := reader.ReadString('\n')

	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')

	fmt.Printf("Roles (comma separated, one of %s): ", strings.Join(models.KnownRoles(), ", "))
	rolesLine, _ := reader.ReadString('\n')
	var roles []string
	for _, r := range strings.Split(rolesLine, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	// Get password securely
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read password")
	}
	fmt.Println() // New line after password input

	user, err := services.CreateUser(db.DB, services.CreateUserInput{
		Name:     strings.TrimSpace(name),
		Email:    email,
		Password: string(passwordBytes),
		Roles:    roles,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create user: %s\n", services.PublicMessage(err))
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("✓ User created successfully!")
	fmt.Printf("  ID: %s\n", user.ID)
	fmt.Printf("  Name: %s\n", user.Name)
	fmt.Printf("  Email: %s\n", user.Email)
	fmt.Printf("  Roles: %s\n", strings.Join(roles, ", "))

	if *issueToken {
		token, err := services.IssueCallerToken(cfg.SessionSecret, user.ID, *tokenTTL, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println()
		fmt.Printf("  Token: %s\n", token)
	}
}
