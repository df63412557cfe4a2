package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type TenantStatus string

const (
	TenantActive   TenantStatus = "active"
	TenantDisabled TenantStatus = "disabled"
)

// Origins is the tenant's CORS allow-list, stored as a JSON array.
type Origins []string

func (o Origins) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (o *Origins) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("origins: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*o = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(o))
}

type Tenant struct {
	ID             string       `db:"tenant_id"      json:"tenant_id"`
	BuyerEmail     *string      `db:"buyer_email"    json:"buyer_email,omitempty"`
	BuyerName      *string      `db:"buyer_name"     json:"buyer_name,omitempty"`
	PublishableKey string       `db:"publishable_key" json:"publishable_key"`
	AllowedOrigins Origins      `db:"allowed_origins" json:"allowed_origins"`
	Status         TenantStatus `db:"status"         json:"status"` // active|disabled
	CreatedAt      time.Time    `db:"created_at"     json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"     json:"updated_at"`
}
