package config

import (
	"os"
	"strings"
)

// LedgerEventsEnabled writes an outbox row for every ledger state change.
//
// Set via env:
// - LEDGER_EVENTS_ENABLED=true
func LedgerEventsEnabled() bool {
	return envBool("LEDGER_EVENTS_ENABLED")
}

// ApprovalRedisLockEnabled wraps approve/reject in a best-effort redis lock per record.
// Correctness never depends on it: the record row is locked FOR UPDATE inside the transaction.
//
// Set via env:
// - APPROVAL_REDIS_LOCK=true
func ApprovalRedisLockEnabled() bool {
	return envBool("APPROVAL_REDIS_LOCK")
}

// LedgerEventsTopic is the Pub/Sub topic the outbox dispatcher publishes to.
func LedgerEventsTopic() string {
	if v := strings.TrimSpace(os.Getenv("LEDGER_EVENTS_TOPIC")); v != "" {
		return v
	}
	return "ledger-events"
}

// PhoneRegion is the default region used to parse phone numbers without a country prefix.
func PhoneRegion() string {
	if v := strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_REGION"))); v != "" {
		return v
	}
	return "MY"
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
