package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tablepos/engine/internal/auth"
	"github.com/tablepos/engine/internal/config"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/enum"
	"github.com/tablepos/engine/internal/logger"
	"github.com/tablepos/engine/internal/service"
)

type menuItem struct {
	name  string
	price string
}

type category struct {
	name  string
	items []menuItem
}

var menu = []category{
	{"Mains", []menuItem{
		{"Lamb Qozi", "10.00"},
		{"Chicken Mandi", "8.00"},
		{"Chicken Kabsa", "9.00"},
		{"Grilled Halloumi Plate", "7.50"},
	}},
	{"Soups", []menuItem{
		{"Lentil Soup", "3.00"},
		{"Harira Soup", "3.50"},
	}},
	{"Drinks", []menuItem{
		{"Mint Tea", "1.00"},
		{"Laban", "1.50"},
	}},
}

var defaultSettings = map[string]string{
	service.SettingRules:                 `[]`,
	service.SettingServicePercent:        `0`,
	service.SettingTaxPercent:            `0`,
	service.SettingRequireTableForDineIn: `true`,
	service.SettingAllowZeroPayment:      `false`,
	service.SettingAllowOverpay:          `false`,
	service.SettingRefundMax:             `0`,
	service.SettingRefundRequirePIN:      `true`,
	service.SettingCancelRequirePIN:      `false`,
}

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	pin := flag.String("pin", "", "Admin manager PIN")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, true)

	// Fall back to environment variables, then defaults
	*email = firstNonEmpty(*email, os.Getenv("SEED_EMAIL"), "admin@tablepos.local")
	*name = firstNonEmpty(*name, os.Getenv("SEED_NAME"), "Admin")
	*pin = firstNonEmpty(*pin, os.Getenv("SEED_PIN"), "1234")
	*password = firstNonEmpty(*password, os.Getenv("SEED_PASSWORD"))
	if *password == "" {
		*password = "password123"
		log.Warn().Msg("using default password 'password123'; change it immediately in production")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("unable to ping database")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}

	// Seed in a transaction: all or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := seed(ctx, tx, *email, *password, *name, *pin); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("commit transaction")
	}
	log.Info().Str("email", *email).Msg("seed completed")
}

func seed(ctx context.Context, tx pgx.Tx, email, password, name, pin string) error {
	q := database.New(tx)

	items := 0
	for i, c := range menu {
		cat, err := q.CreateCategory(ctx, c.name, int32(i))
		if err != nil {
			return fmt.Errorf("category %s: %w", c.name, err)
		}
		for _, it := range c.items {
			if _, err := q.CreateMenuItem(ctx, database.CreateMenuItemParams{
				Name:       it.name,
				Price:      database.FromDecimal(decimal.RequireFromString(it.price)),
				CategoryID: cat.ID,
			}); err != nil {
				return fmt.Errorf("menu item %s: %w", it.name, err)
			}
			items++
		}
	}
	log.Info().Int("categories", len(menu)).Int("items", items).Msg("menu seeded")

	passwordHash, err := auth.HashSecret(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	pinHash, err := auth.HashSecret(pin)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	user, err := q.UpsertUser(ctx, database.UpsertUserParams{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		PinHash:      pgtype.Text{String: pinHash, Valid: true},
		Role:         enum.UserRoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("admin user: %w", err)
	}
	log.Info().Str("user_id", user.ID.String()).Msg("admin seeded")

	for key, value := range defaultSettings {
		if err := q.UpsertSetting(ctx, key, value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	log.Info().Int("settings", len(defaultSettings)).Msg("settings seeded")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
