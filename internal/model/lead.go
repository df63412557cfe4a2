package model

import (
	"strings"
	"time"
)

type LeadStatus string

const (
	LeadPending   LeadStatus = "pending"
	LeadDelivered LeadStatus = "delivered"
	LeadFailed    LeadStatus = "failed"
)

func (s LeadStatus) String() string { return string(s) }

func (s LeadStatus) Valid() bool {
	return s == LeadPending || s == LeadDelivered || s == LeadFailed
}

// LeadFields is one inbound form submission.
type LeadFields struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	AnnualSalary string `json:"annualSalary,omitempty"`
	Source       string `json:"source,omitempty"`
	Message      string `json:"message,omitempty"`
	SiteID       string `json:"siteId,omitempty"`
}

// Normalize trims surrounding whitespace from every field.
func (f LeadFields) Normalize() LeadFields {
	return LeadFields{
		Name:         strings.TrimSpace(f.Name),
		Email:        strings.TrimSpace(f.Email),
		Phone:        strings.TrimSpace(f.Phone),
		AnnualSalary: strings.TrimSpace(f.AnnualSalary),
		Source:       strings.TrimSpace(f.Source),
		Message:      strings.TrimSpace(f.Message),
		SiteID:       strings.TrimSpace(f.SiteID),
	}
}

// SheetHeader is written to row 1 of every provisioned spreadsheet.
var SheetHeader = []string{"Name", "Email", "Phone", "Annual Salary", "Source", "Created_At"}

// SheetTimestampLayout formats the Created_At column.
const SheetTimestampLayout = "2006-01-02T15:04:05.000Z"

// SheetRow renders the lead as one spreadsheet row; the message is not part of the sheet.
func (f LeadFields) SheetRow(at time.Time) []any {
	return []any{f.Name, f.Email, f.Phone, f.AnnualSalary, f.Source, at.UTC().Format(SheetTimestampLayout)}
}

// Lead is the audit record persisted in the leads table.
type Lead struct {
	ID           string     `db:"lead_id"       json:"id"`
	TenantID     string     `db:"tenant_id"     json:"tenant_id"`
	SiteID       string     `db:"site_id"       json:"site_id"`
	Name         string     `db:"name"          json:"name"`
	Email        string     `db:"email"         json:"email"`
	Phone        string     `db:"phone"         json:"phone"`
	AnnualSalary string     `db:"annual_salary" json:"annual_salary"`
	Source       string     `db:"source"        json:"source"`
	Message      string     `db:"message"       json:"message"`
	Status       LeadStatus `db:"status"        json:"status"`
	LastError    *string    `db:"last_error"    json:"last_error,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// Fields returns the submitted fields of a persisted lead.
func (l Lead) Fields() LeadFields {
	return LeadFields{
		Name:         l.Name,
		Email:        l.Email,
		Phone:        l.Phone,
		AnnualSalary: l.AnnualSalary,
		Source:       l.Source,
		Message:      l.Message,
		SiteID:       l.SiteID,
	}
}
