// Package validation turns raw registration submissions into canonical
// records. It is the authoritative copy of the intake rules; the client
// package carries an advisory copy that must agree with it.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/bossnet/party-signup/internal/model"
)

const (
	nicknameMinLen  = 2
	nicknameMaxLen  = 50
	nicknameCapLen  = 255
	emailMaxLen     = 255
	booleanTemplate = "%s muss ein Boolean-Wert sein."
)

// User-facing messages. The front end renders them verbatim.
const (
	MsgNicknameRequired = "Clan/Nickname ist erforderlich."
	MsgNicknameLength   = "Clan/Nickname muss zwischen 2 und 50 Zeichen lang sein."
	MsgNicknameCharset  = "Clan/Nickname enthält ungültige Zeichen."
	MsgEmailRequired    = "E-Mail ist erforderlich."
	MsgEmailInvalid     = "E-Mail Format ist ungültig."
	MsgEmailTooLong     = "E-Mail ist zu lang."
	MsgTicketInvalid    = "Ungültiger Ticket-Typ."
	MsgGuestsInvalid    = "Ungültige Anzahl Gäste (0-10 erlaubt)."
	MsgConsentRequired  = "Bestätigung (Privatparty) ist Pflicht."
)

var (
	nicknamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\[\]\-.\s]+$`)
	scriptBlock     = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	angleBrackets   = strings.NewReplacer("<", "", ">", "")
)

// Error collects every problem found in a submission.
type Error struct {
	Problems []model.FieldProblem
	// ConsentMissing is set when consent was absent or not true, so callers
	// can surface it apart from the other problems.
	ConsentMissing bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Messages(), "; "))
}

// Messages returns the problem messages in the order they were found.
func (e *Error) Messages() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Message)
	}
	return out
}

func (e *Error) add(field, msg string) {
	e.Problems = append(e.Problems, model.FieldProblem{Field: field, Message: msg})
}

// Validate checks every field of sub independently and returns either the
// canonical registration or a *Error listing all problems.
func Validate(sub model.Submission) (model.Registration, error) {
	verr := &Error{}
	var reg model.Registration

	reg.Nickname = validateNickname(sub, verr)
	reg.Email = validateEmail(sub, verr)
	reg.TicketType = validateTicket(sub, verr)

	reg.Shirt = validateBool(sub, model.FieldShirt, verr)
	reg.Pizza = validateBool(sub, model.FieldPizza, verr)
	reg.Drinks = validateBool(sub, model.FieldDrinks, verr)
	consent := validateBool(sub, model.FieldConsent, verr)

	reg.Guests = validateGuests(sub, verr)

	if !consent {
		verr.ConsentMissing = true
		verr.add(model.FieldConsent, MsgConsentRequired)
	}
	reg.Consent = consent

	if len(verr.Problems) > 0 {
		return model.Registration{}, verr
	}
	return reg, nil
}

// SanitizeNickname trims the nickname, drops script blocks and angle
// brackets, and caps its length. It does not check the result.
func SanitizeNickname(s string) string {
	s = strings.TrimSpace(s)
	s = scriptBlock.ReplaceAllString(s, "")
	s = angleBrackets.Replace(s)
	if utf8.RuneCountInString(s) > nicknameCapLen {
		s = string([]rune(s)[:nicknameCapLen])
	}
	return strings.TrimSpace(s)
}

func validateNickname(sub model.Submission, verr *Error) string {
	raw, _ := sub[model.FieldNickname].(string)
	nick, msg := CheckNickname(raw)
	if msg != "" {
		verr.add(model.FieldNickname, msg)
	}
	return nick
}

// CheckNickname sanitizes raw and returns the cleaned nickname together
// with the message describing why it is unacceptable, or "" when it passes.
func CheckNickname(raw string) (string, string) {
	if strings.TrimSpace(raw) == "" {
		return "", MsgNicknameRequired
	}
	nick := SanitizeNickname(raw)
	switch n := utf8.RuneCountInString(nick); {
	case n == 0:
		return nick, MsgNicknameRequired
	case n < nicknameMinLen || n > nicknameMaxLen:
		return nick, MsgNicknameLength
	case !nicknamePattern.MatchString(nick):
		return nick, MsgNicknameCharset
	}
	return nick, ""
}

func validateEmail(sub model.Submission, verr *Error) string {
	raw, _ := sub[model.FieldEmail].(string)
	email, msg := CheckEmail(raw)
	if msg != "" {
		verr.add(model.FieldEmail, msg)
	}
	return email
}

// CheckEmail returns the canonical form of raw, or "" and the message
// describing why it is unacceptable.
func CheckEmail(raw string) (string, string) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", MsgEmailRequired
	}
	if len(email) > emailMaxLen {
		return "", MsgEmailTooLong
	}
	if !IsEmail(email) {
		return "", MsgEmailInvalid
	}
	canonical, err := NormalizeEmail(email)
	if err != nil {
		return "", MsgEmailInvalid
	}
	return canonical, ""
}

func validateTicket(sub model.Submission, verr *Error) model.TicketType {
	raw, _ := sub[model.FieldTicketType].(string)
	ticket, ok := CheckTicket(raw)
	if !ok {
		verr.add(model.FieldTicketType, MsgTicketInvalid)
	}
	return ticket
}

// CheckTicket maps raw to a known ticket type.
func CheckTicket(raw string) (model.TicketType, bool) {
	// "Ü" may arrive decomposed from some input methods.
	ticket := model.TicketType(norm.NFC.String(raw))
	if !ticket.Valid() {
		return "", false
	}
	return ticket, true
}

func validateBool(sub model.Submission, field string, verr *Error) bool {
	v, present := sub[field]
	if !present {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		verr.add(field, fmt.Sprintf(booleanTemplate, field))
		return false
	}
	return b
}

func validateGuests(sub model.Submission, verr *Error) int {
	v, present := sub[model.FieldGuests]
	if !present || v == nil {
		return 0
	}
	n, ok := coerceInt(v)
	if !ok || n < model.MinGuests || n > model.MaxGuests {
		verr.add(model.FieldGuests, MsgGuestsInvalid)
		return 0
	}
	return n
}

// coerceInt accepts integral numbers and numeric strings.
func coerceInt(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case int:
		return t, true
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
