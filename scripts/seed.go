//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/formlink/internal/access"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/auth"
	"github.com/hugh/formlink/internal/clients"
	"github.com/hugh/formlink/internal/database"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/directory"
	"github.com/hugh/formlink/pkg/config"
	"github.com/hugh/formlink/pkg/util"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	dir := directory.New(db)
	gate := access.NewGate(dir)
	authService := auth.NewService(db, auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry()), dir, gate)
	clientService := clients.NewService(db, gate, dir)

	admin, err := ensureAdmin(db,
		envOr("ADMIN_EMAIL", "admin@example.com"),
		envOr("ADMIN_PASSWORD", "admin12345"),
	)
	if err != nil {
		log.Fatalf("failed to create admin user: %v", err)
	}
	fmt.Printf("Admin: %s\n", admin.Email)

	adminPrincipal := &access.Principal{ID: admin.ID, Role: admin.Role, Email: admin.Email}

	agent, err := authService.CreateAgent(ctx, adminPrincipal, auth.CreateAgentInput{
		Email:    envOr("AGENT_EMAIL", "agent@example.com"),
		Password: envOr("AGENT_PASSWORD", "agent12345"),
		Name:     "Demo Agent",
	})
	if errors.Is(err, apperr.ErrConflict) {
		fmt.Println("Agent already exists, skipping demo data")
		return
	}
	if err != nil {
		log.Fatalf("failed to create agent: %v", err)
	}
	fmt.Printf("Agent: %s\n", agent.User.Email)

	client, err := clientService.Create(ctx, adminPrincipal, clients.CreateInput{
		Email:    envOr("CLIENT_EMAIL", "client@example.com"),
		FullName: "Demo Client",
		AgentID:  agent.User.ID,
	})
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}
	fmt.Printf("Client: %s (register at /api/v1/auth/register with this email)\n", client.Email)
}

// ensureAdmin creates the admin account directly; no API operation creates
// admins.
func ensureAdmin(db *gorm.DB, email, password string) (*models.User, error) {
	email = directory.NormalizeEmail(email)

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Admin",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
