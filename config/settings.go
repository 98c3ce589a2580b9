package config

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// LedgerSettings holds the tunables of the costing and locking code.
type LedgerSettings struct {
	MarginFractions    []decimal.Decimal
	OverheadCategories []string
	LockTTL            time.Duration
	LockWait           time.Duration
	EventsEnabled      bool
	EventsTopic        string
}

var (
	settings     *LedgerSettings
	settingsOnce sync.Once
)

// GetSettings loads the ledger settings once from the environment (and .env, if present).
func GetSettings() *LedgerSettings {
	settingsOnce.Do(func() {
		settings = loadSettings()
	})
	return settings
}

// ResetSettings forces the next GetSettings call to reload. Used by tests that change env.
func ResetSettings() {
	settingsOnce = sync.Once{}
}

func loadSettings() *LedgerSettings {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	// a missing .env is fine; the process env still applies
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("LEDGER_MARGIN_FRACTIONS", "0.30,0.40,0.50")
	v.SetDefault("LEDGER_OVERHEAD_CATEGORIES", "RENT,UTILITIES,SALARIES,EQUIPMENT,TRANSPORT,OTHER")
	v.SetDefault("LEDGER_LOCK_TTL_SECONDS", 30)
	v.SetDefault("LEDGER_LOCK_WAIT_SECONDS", 10)
	v.SetDefault("LEDGER_EVENTS_ENABLED", false)
	v.SetDefault("LEDGER_EVENTS_TOPIC", "ledger-events")

	s := &LedgerSettings{
		OverheadCategories: splitUpper(v.GetString("LEDGER_OVERHEAD_CATEGORIES")),
		LockTTL:            time.Duration(v.GetInt("LEDGER_LOCK_TTL_SECONDS")) * time.Second,
		LockWait:           time.Duration(v.GetInt("LEDGER_LOCK_WAIT_SECONDS")) * time.Second,
		EventsEnabled:      v.GetBool("LEDGER_EVENTS_ENABLED"),
		EventsTopic:        v.GetString("LEDGER_EVENTS_TOPIC"),
	}
	for _, part := range strings.Split(v.GetString("LEDGER_MARGIN_FRACTIONS"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := decimal.NewFromString(part)
		if err != nil || !f.IsPositive() || f.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			log.Printf("ignoring invalid margin fraction %q", part)
			continue
		}
		s.MarginFractions = append(s.MarginFractions, f)
	}
	return s
}

func splitUpper(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
