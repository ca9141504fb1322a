// Package model defines the core domain types for the party signup system.
package model

import "time"

// TicketType is the ticket category of a registrant.
type TicketType string

const (
	// TicketAdult is the adult ticket ("Ü18").
	TicketAdult TicketType = "Ü18"
	// TicketMinor is the minor ticket ("U18").
	TicketMinor TicketType = "U18"
)

// Valid reports whether t is one of the two ticket categories.
func (t TicketType) Valid() bool {
	return t == TicketAdult || t == TicketMinor
}

// Guest count bounds, enforced by the validator and the table's check constraint.
const (
	MinGuests = 0
	MaxGuests = 10
)

// Submission is a raw registration body as decoded from the client.
// Values keep their JSON shape (string, bool, json.Number, nil, ...).
type Submission map[string]any

// Field names of the registration body.
const (
	FieldNickname     = "clan_nickname"
	FieldEmail        = "email"
	FieldTicketType   = "ticket_type"
	FieldShirt        = "shirt"
	FieldPizza        = "pizza"
	FieldDrinks       = "drinks"
	FieldGuests       = "guests"
	FieldConsent      = "consent"
	FieldFormLoadTime = "formLoadTime"
)

// HoneypotFields are never rendered to humans and must arrive empty.
var HoneypotFields = []string{"website", "phone", "address"}

// Registration is the canonical, validated form of a signup.
type Registration struct {
	ID         int64      `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Nickname   string     `json:"clan_nickname"`
	Email      string     `json:"email"`
	TicketType TicketType `json:"ticket_type"`
	Shirt      bool       `json:"shirt"`
	Pizza      bool       `json:"pizza"`
	Drinks     bool       `json:"drinks"`
	Guests     int        `json:"guests"`
	Consent    bool       `json:"consent"`
	Paid       int        `json:"bezahlt"`
}

// Provenance is captured from the request at write time and is never
// supplied by the registrant.
type Provenance struct {
	IPAddress string
	UserAgent string
}

// UpsertResult describes the row touched by an upsert.
type UpsertResult struct {
	ID      int64
	Created bool
}

// PublicRegistration is the projection exposed by the participant listing.
type PublicRegistration struct {
	ID        int64     `json:"id"`
	Nickname  string    `json:"clan_nickname"`
	Paid      int       `json:"bezahlt"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	OK      bool   `json:"ok"`
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// FieldProblem is a single validation failure tied to a field.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse is returned when a submission fails validation.
type ValidationErrorResponse struct {
	Error           string         `json:"error"`
	Details         []string       `json:"details"`
	Fields          []FieldProblem `json:"fields"`
	ConsentRequired bool           `json:"consent_required"`
}

// HealthResponse is returned by the health probe.
type HealthResponse struct {
	OK        bool      `json:"ok"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
