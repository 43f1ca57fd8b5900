package types

import "database/sql/driver"

// PayoutDestination snapshots the supplier wallet a payout was created against.
// Later wallet edits never change where an existing payout is sent.
type PayoutDestination struct {
	WalletID   string `json:"wallet_id"`
	Kind       string `json:"kind"`
	AccountRef string `json:"account_ref"`
	HolderName string `json:"holder_name,omitempty"`
}

func (d PayoutDestination) Value() (driver.Value, error) { return jsonValue(d) }

func (d *PayoutDestination) Scan(value any) error { return scanJSON(value, d) }
