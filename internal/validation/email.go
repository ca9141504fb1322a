package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrEmailLocalPartEmpty is returned when canonicalisation leaves nothing
// before the "@".
var ErrEmailLocalPartEmpty = errors.New("email local part is empty after normalization")

var syntax = validator.New()

var (
	gmailDomains   = domainSet("gmail.com", "googlemail.com")
	icloudDomains  = domainSet("icloud.com", "me.com")
	outlookDomains = domainSet(
		"hotmail.at", "hotmail.be", "hotmail.ca", "hotmail.cl", "hotmail.co.il", "hotmail.co.nz",
		"hotmail.co.th", "hotmail.co.uk", "hotmail.com", "hotmail.com.ar", "hotmail.com.au",
		"hotmail.com.br", "hotmail.com.gr", "hotmail.com.mx", "hotmail.com.pe", "hotmail.com.tr",
		"hotmail.com.vn", "hotmail.cz", "hotmail.de", "hotmail.dk", "hotmail.es", "hotmail.fr",
		"hotmail.hu", "hotmail.id", "hotmail.ie", "hotmail.in", "hotmail.it", "hotmail.jp",
		"hotmail.kr", "hotmail.lv", "hotmail.my", "hotmail.ph", "hotmail.pt", "hotmail.sa",
		"hotmail.sg", "hotmail.sk", "live.be", "live.co.uk", "live.com", "live.com.ar",
		"live.com.mx", "live.de", "live.es", "live.eu", "live.fr", "live.it", "live.nl",
		"msn.com", "outlook.at", "outlook.be", "outlook.cl", "outlook.co.il", "outlook.co.nz",
		"outlook.co.th", "outlook.com", "outlook.com.ar", "outlook.com.au", "outlook.com.br",
		"outlook.com.gr", "outlook.com.pe", "outlook.com.tr", "outlook.com.vn", "outlook.cz",
		"outlook.de", "outlook.dk", "outlook.es", "outlook.fr", "outlook.hu", "outlook.id",
		"outlook.ie", "outlook.in", "outlook.it", "outlook.jp", "outlook.kr", "outlook.lv",
		"outlook.my", "outlook.ph", "outlook.pt", "outlook.sa", "outlook.sg", "outlook.sk",
		"passport.com",
	)
	yahooDomains = domainSet(
		"rocketmail.com", "yahoo.ca", "yahoo.co.uk", "yahoo.com", "yahoo.de", "yahoo.fr",
		"yahoo.in", "yahoo.it", "ymail.com",
	)
	yandexDomains = domainSet(
		"yandex.ru", "yandex.ua", "yandex.kz", "yandex.com", "yandex.by", "ya.ru",
	)
)

func domainSet(domains ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[d] = struct{}{}
	}
	return set
}

func in(set map[string]struct{}, domain string) bool {
	_, ok := set[domain]
	return ok
}

// IsEmail reports whether s is a syntactically valid address.
func IsEmail(s string) bool {
	return syntax.Var(s, "required,email") == nil
}

// NormalizeEmail folds equivalent spellings of an address to one canonical
// string: everything is lowercased and provider-specific sub-addressing is
// removed, so uniqueness on the stored value is meaningful.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", ErrEmailLocalPartEmpty
	}
	local, domain := email[:at], email[at+1:]

	switch {
	case in(gmailDomains, domain):
		local = cutTag(local, "+")
		local = strings.ReplaceAll(local, ".", "")
		domain = "gmail.com"
	case in(icloudDomains, domain), in(outlookDomains, domain):
		local = cutTag(local, "+")
	case in(yahooDomains, domain):
		local = cutTag(local, "-")
	case in(yandexDomains, domain):
		domain = "yandex.ru"
	}

	if local == "" {
		return "", ErrEmailLocalPartEmpty
	}
	return local + "@" + domain, nil
}

func cutTag(local, sep string) string {
	before, _, _ := strings.Cut(local, sep)
	return before
}
