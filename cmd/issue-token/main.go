package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/classpulse-backend/internal/config"
	"github.com/stemsi/classpulse-backend/internal/service"
)

// issue-token mints a JWT for local testing. Identity lives with the school's
// SSO in production; this only signs with the configured secret.
func main() {
	var (
		tokenType string
		userID    string
		name      string
		section   string
	)
	flag.StringVar(&tokenType, "type", "student", "Token type: student or teacher")
	flag.StringVar(&userID, "user", "", "User ID (student number or teacher ID)")
	flag.StringVar(&name, "name", "", "Display name")
	flag.StringVar(&section, "section", "", "Student section, e.g. XII-TKJ-2")
	flag.Parse()

	if userID == "" {
		fmt.Fprintln(os.Stderr, "Error: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	tt := service.TokenType(tokenType)
	if tt != service.TokenTypeStudent && tt != service.TokenTypeTeacher {
		fmt.Fprintf(os.Stderr, "Error: unknown token type %q\n", tokenType)
		os.Exit(2)
	}
	if tt == service.TokenTypeTeacher {
		section = ""
	}

	cfg := config.Load()
	authService := service.NewAuthService(cfg)

	token, err := authService.GenerateToken(tt, userID, name, section)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
