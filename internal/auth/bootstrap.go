package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codemart/internal/config"
	"codemart/internal/logger"
	"codemart/internal/models"

	"github.com/google/uuid"
)

// SeedAdmin ensures the configured admin account exists. Reruns are
// no-ops: an existing account is never overwritten, so a rotated
// password in the environment does not clobber a live one.
func SeedAdmin(ctx context.Context, db *DB, cfg config.AuthConfig, log *logger.Logger) error {
	if !cfg.SeedAdminAccount {
		return nil
	}

	_, err := db.GetUserByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		log.Info("AUTH", fmt.Sprintf("Admin account %s already present", cfg.AdminEmail))
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return fmt.Errorf("failed to look up admin account: %w", err)
	}

	hashed, err := HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		ID:           uuid.NewString(),
		Email:        cfg.AdminEmail,
		Name:         cfg.AdminName,
		PasswordHash: hashed,
		Role:         models.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Info("AUTH", fmt.Sprintf("Seeded admin account %s", cfg.AdminEmail))
	return nil
}
