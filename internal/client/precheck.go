package client

import (
	"github.com/bossnet/party-signup/internal/model"
	"github.com/bossnet/party-signup/internal/validation"
)

// Advisory messages shown before anything is sent. Nickname problems use the
// server's own wording.
const (
	hintEmail   = "Bitte gültige E-Mail angeben."
	hintTicket  = "Ungültiger Ticket-Typ."
	hintGuests  = "Ungültige Anzahl Gäste (0-10 erlaubt)."
	hintConsent = "Bitte die Privatparty-Bestätigung anhaken."
)

// Precheck runs the intake rules against a form and returns the hints to
// show, or nil when the form may be submitted. The field checks are the
// server's; the server still re-validates the request it receives, so a nil
// result is no guarantee of success.
func Precheck(f Form) []string {
	var hints []string

	if _, msg := validation.CheckNickname(f.Nickname); msg != "" {
		hints = append(hints, msg)
	}
	if _, msg := validation.CheckEmail(f.Email); msg != "" {
		hints = append(hints, hintEmail)
	}
	if _, ok := validation.CheckTicket(f.TicketType); !ok {
		hints = append(hints, hintTicket)
	}
	if f.Guests < model.MinGuests || f.Guests > model.MaxGuests {
		hints = append(hints, hintGuests)
	}
	if !f.Consent {
		hints = append(hints, hintConsent)
	}
	return hints
}
