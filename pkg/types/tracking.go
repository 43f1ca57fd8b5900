package types

import "database/sql/driver"

// Tracking is the carrier information a supplier attaches to a shipment.
type Tracking struct {
	Carrier string  `json:"carrier"`
	Number  string  `json:"number"`
	URL     *string `json:"url,omitempty"`
}

func (t *Tracking) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return jsonValue(t)
}

func (t *Tracking) Scan(value any) error { return scanJSON(value, t) }
