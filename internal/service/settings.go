package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/tablepos/engine/internal/database"
	"github.com/tablepos/engine/internal/pricing"
)

// Keys of the settings table.
const (
	SettingRules                 = "pricing.rules"
	SettingServicePercent        = "service_percent"
	SettingTaxPercent            = "tax_percent"
	SettingRequireTableForDineIn = "require_table_for_dine_in"
	SettingAllowZeroPayment      = "payments.allow_zero"
	SettingAllowOverpay          = "payments.allow_overpay"
	SettingRefundMax             = "refunds.max_amount"
	SettingRefundRequirePIN      = "refunds.require_pin"
	SettingCancelRequirePIN      = "cancel.require_pin"
)

// Settings is the snapshot of operator configuration used by one pricing or
// ledger pass. It is read fresh every time and never cached.
type Settings struct {
	Rules                 []pricing.Rule
	ServicePercent        decimal.Decimal
	TaxPercent            decimal.Decimal
	RequireTableForDineIn bool
	AllowZeroPayment      bool
	AllowOverpay          bool
	// RefundMax is zero when refunds are uncapped.
	RefundMax        decimal.Decimal
	RefundRequirePIN bool
	CancelRequirePIN bool
}

// SettingsReader is satisfied by *database.Queries.
type SettingsReader interface {
	ListSettings(ctx context.Context) ([]database.Setting, error)
}

func loadSettings(ctx context.Context, r SettingsReader) (Settings, error) {
	rows, err := r.ListSettings(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("list settings: %w", err)
	}
	return ParseSettings(rows), nil
}

// ParseSettings builds a snapshot from raw rows. Values are JSON text, but
// bare strings are accepted too. Anything unparsable falls back to its default.
func ParseSettings(rows []database.Setting) Settings {
	s := Settings{
		ServicePercent: decimal.Zero,
		TaxPercent:     decimal.Zero,
		RefundMax:      decimal.Zero,
	}
	for _, row := range rows {
		switch row.Key {
		case SettingRules:
			s.Rules = pricing.ParseRules([]byte(row.Value))
		case SettingServicePercent:
			s.ServicePercent = nonNegative(settingValue(row.Value))
		case SettingTaxPercent:
			s.TaxPercent = nonNegative(settingValue(row.Value))
		case SettingRequireTableForDineIn:
			s.RequireTableForDineIn = cast.ToBool(settingValue(row.Value))
		case SettingAllowZeroPayment:
			s.AllowZeroPayment = cast.ToBool(settingValue(row.Value))
		case SettingAllowOverpay:
			s.AllowOverpay = cast.ToBool(settingValue(row.Value))
		case SettingRefundMax:
			s.RefundMax = nonNegative(settingValue(row.Value))
		case SettingRefundRequirePIN:
			s.RefundRequirePIN = cast.ToBool(settingValue(row.Value))
		case SettingCancelRequirePIN:
			s.CancelRequirePIN = cast.ToBool(settingValue(row.Value))
		}
	}
	return s
}

func settingValue(raw string) any {
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return strings.TrimSpace(raw)
	}
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return v
}

func nonNegative(v any) decimal.Decimal {
	d, err := decimal.NewFromString(cast.ToString(v))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
