package config

import (
	"os"
	"strings"
)

// StrictLedgerImmutability keeps the append-only guard on. It is on unless explicitly disabled:
// - STRICT_LEDGER_IMMUTABILITY=false
func StrictLedgerImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_LEDGER_IMMUTABILITY")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// LedgerEventsEnabled turns on the outbox dispatcher in the server process.
// - LEDGER_EVENTS_ENABLED=true
func LedgerEventsEnabled() bool {
	return GetSettings().EventsEnabled
}
