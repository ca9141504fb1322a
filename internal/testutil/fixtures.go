package testutil

import (
	"strings"
	"time"

	"github.com/bossnet/party-signup/internal/client"
)

// RegistrationCase is a form together with the verdict both copies of the
// intake rules must reach for it.
type RegistrationCase struct {
	Name  string
	Form  client.Form
	Valid bool
}

// ValidForm returns a form that passes every rule. The load time is far
// enough in the past to clear the fill-time check.
func ValidForm(email string) client.Form {
	return client.Form{
		Nickname:   "[BOSS]Tester",
		Email:      email,
		TicketType: "Ü18",
		Shirt:      true,
		Pizza:      false,
		Drinks:     true,
		Guests:     1,
		Consent:    true,
		LoadedAt:   time.Now().Add(-time.Minute),
	}
}

func with(f client.Form, mutate func(*client.Form)) client.Form {
	mutate(&f)
	return f
}

// RegistrationCases is shared by the server validator tests and the client
// precheck tests so the two implementations cannot drift apart.
func RegistrationCases() []RegistrationCase {
	base := ValidForm("test.user+x@example.com")
	return []RegistrationCase{
		{Name: "valid", Form: base, Valid: true},
		{Name: "two char nickname", Form: with(base, func(f *client.Form) { f.Nickname = "ab" }), Valid: true},
		{Name: "one char nickname", Form: with(base, func(f *client.Form) { f.Nickname = "a" }), Valid: false},
		{Name: "fifty char nickname", Form: with(base, func(f *client.Form) { f.Nickname = strings.Repeat("x", 50) }), Valid: true},
		{Name: "fifty one char nickname", Form: with(base, func(f *client.Form) { f.Nickname = strings.Repeat("x", 51) }), Valid: false},
		{Name: "empty nickname", Form: with(base, func(f *client.Form) { f.Nickname = "   " }), Valid: false},
		{Name: "nickname with brackets only markup", Form: with(base, func(f *client.Form) { f.Nickname = "<>" }), Valid: false},
		{Name: "nickname with stray angle brackets", Form: with(base, func(f *client.Form) { f.Nickname = "Bob<>" }), Valid: true},
		{Name: "nickname with script block", Form: with(base, func(f *client.Form) { f.Nickname = "Neo<script>alert(1)</script>" }), Valid: true},
		{Name: "nickname that is only a script", Form: with(base, func(f *client.Form) { f.Nickname = "<script>x</script>" }), Valid: false},
		{Name: "nickname with script-like tag", Form: with(base, func(f *client.Form) { f.Nickname = "Neo<scripts>x</script>" }), Valid: false},
		{Name: "nickname with unclosed script tag", Form: with(base, func(f *client.Form) { f.Nickname = "Neo<script x</script>" }), Valid: false},
		{Name: "nickname with malformed script end", Form: with(base, func(f *client.Form) { f.Nickname = "Neo<script>x</scriptx>" }), Valid: false},
		{Name: "nickname with spaced script end", Form: with(base, func(f *client.Form) { f.Nickname = "Neo<script >x</script >" }), Valid: true},
		{Name: "nickname with html tag", Form: with(base, func(f *client.Form) { f.Nickname = "<b>Bob</b>" }), Valid: false},
		{Name: "nickname with umlaut", Form: with(base, func(f *client.Form) { f.Nickname = "Jürgen" }), Valid: false},
		{Name: "nickname with allowed symbols", Form: with(base, func(f *client.Form) { f.Nickname = "[Clan] nick-name_1.0" }), Valid: true},
		{Name: "missing email", Form: with(base, func(f *client.Form) { f.Email = "" }), Valid: false},
		{Name: "email without at", Form: with(base, func(f *client.Form) { f.Email = "not-an-email" }), Valid: false},
		{Name: "email without tld", Form: with(base, func(f *client.Form) { f.Email = "a@b" }), Valid: false},
		{Name: "mixed case email", Form: with(base, func(f *client.Form) { f.Email = "Test.User+x@Example.COM" }), Valid: true},
		{Name: "email too long", Form: with(base, func(f *client.Form) { f.Email = strings.Repeat("a", 250) + "@example.com" }), Valid: false},
		{Name: "email with double dot in local part", Form: with(base, func(f *client.Form) { f.Email = "a..b@example.com" }), Valid: false},
		{Name: "email with leading dot", Form: with(base, func(f *client.Form) { f.Email = ".a@example.com" }), Valid: false},
		{Name: "email with hyphen-led domain", Form: with(base, func(f *client.Form) { f.Email = "a@-example.com" }), Valid: false},
		{Name: "email with comment", Form: with(base, func(f *client.Form) { f.Email = "a(b)@example.com" }), Valid: false},
		{Name: "email with double dot in domain", Form: with(base, func(f *client.Form) { f.Email = "a@example..com" }), Valid: false},
		{Name: "email with quoted local part", Form: with(base, func(f *client.Form) { f.Email = `"a b"@example.com` }), Valid: true},
		{Name: "gmail tag only", Form: with(base, func(f *client.Form) { f.Email = "+party@gmail.com" }), Valid: false},
		{Name: "decomposed adult ticket", Form: with(base, func(f *client.Form) { f.TicketType = "U\u030818" }), Valid: true},
		{Name: "minor ticket", Form: with(base, func(f *client.Form) { f.TicketType = "U18" }), Valid: true},
		{Name: "unknown ticket", Form: with(base, func(f *client.Form) { f.TicketType = "VIP" }), Valid: false},
		{Name: "empty ticket", Form: with(base, func(f *client.Form) { f.TicketType = "" }), Valid: false},
		{Name: "zero guests", Form: with(base, func(f *client.Form) { f.Guests = 0 }), Valid: true},
		{Name: "ten guests", Form: with(base, func(f *client.Form) { f.Guests = 10 }), Valid: true},
		{Name: "eleven guests", Form: with(base, func(f *client.Form) { f.Guests = 11 }), Valid: false},
		{Name: "negative guests", Form: with(base, func(f *client.Form) { f.Guests = -1 }), Valid: false},
		{Name: "no consent", Form: with(base, func(f *client.Form) { f.Consent = false }), Valid: false},
	}
}
