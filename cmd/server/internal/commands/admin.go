package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/shortlink/internal/credential"
	"github.com/wolfeidau/shortlink/internal/logger"
	"github.com/wolfeidau/shortlink/internal/models"
	"github.com/wolfeidau/shortlink/internal/store"
)

type AdminCmd struct {
	Create AdminCreateCmd `cmd:"" help:"Create an admin account"`
}

// AdminCreateCmd bootstraps an admin. The password comes from the environment so it never
// lands in shell history.
type AdminCreateCmd struct {
	Email     string `help:"admin email address" required:""`
	Password  string `help:"admin password" env:"SHORTLINK_ADMIN_PASSWORD" hidden:""`
	TwoFactor bool   `help:"require an emailed one-time code at login (needs a mail transport)" default:"false"`

	Store StoreFlags `embed:""`
}

const minPasswordLength = 12

func (c *AdminCreateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	email := models.NormalizeEmail(c.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if len(c.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters (SHORTLINK_ADMIN_PASSWORD)", minPasswordLength)
	}
	if c.TwoFactor && !mailTransportConfigured {
		return errors.New("two-factor login needs a mail transport, serve only logs outgoing mail without the code")
	}

	if c.Store.StoreType == "memory" {
		log.Warn().Msg("Admins created in the in-memory store are gone when this command exits")
	}

	b, err := c.Store.open(ctx, log)
	if err != nil {
		return err
	}
	defer b.Close()

	checker, err := credential.NewChecker(credential.WithFloor(time.Millisecond))
	if err != nil {
		return fmt.Errorf("failed to create credential checker: %w", err)
	}

	hash, err := checker.Hash(c.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	adminID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate admin ID: %w", err)
	}

	now := time.Now().UTC()
	admin := &models.Admin{
		AdminID:          adminID,
		Email:            email,
		PasswordHash:     hash,
		Active:           true,
		TwoFactorEnabled: c.TwoFactor,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := b.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("admin %s already exists", email)
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}

	log.Info().
		Str("admin_id", adminID.String()).
		Str("email", email).
		Bool("two_factor", c.TwoFactor).
		Msg("Admin created")

	return nil
}
