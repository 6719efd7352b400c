package config

import (
	"os"
	"strings"
)

// RestockOnCancel controls whether cancelling a validated customer order
// writes compensating inbound movements for its debited lines. Off by
// default: a cancelled sale keeps its ledger history and stock is corrected
// through an explicit adjustment.
//
// Set via env:
// - RESTOCK_ON_CANCEL=true
func RestockOnCancel() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RESTOCK_ON_CANCEL")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
