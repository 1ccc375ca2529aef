package resume

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	usernameInvalid = regexp.MustCompile(`[^a-z0-9._-]`)
	slugInvalid     = regexp.MustCompile(`[^a-z0-9]+`)

	// letters without a decomposition into base letter and accent
	slugLetters = strings.NewReplacer(
		"&", " and ",
		"ß", "ss",
		"æ", "ae",
		"œ", "oe",
		"ø", "o",
		"đ", "d",
		"ð", "d",
		"ł", "l",
		"þ", "th",
		"ı", "i",
	)
)

// ToUsername lowercases value and strips everything but letters, digits,
// dots, hyphens and underscores. The result is at most 64 characters.
func ToUsername(value string) string {
	u := usernameInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "")
	if len(u) > 64 {
		u = u[:64]
	}
	return u
}

// Slugify turns value into a lowercase, hyphen separated slug. Accents are
// folded to their base letters and "&" is spelled out.
func Slugify(value string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(slugLetters.Replace(strings.ToLower(value))) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := slugInvalid.ReplaceAllString(b.String(), "-")
	return strings.Trim(s, "-")
}

// Initials returns up to two uppercase initials of name.
func Initials(name string) string {
	var out []rune
	for _, part := range strings.Fields(name) {
		out = append(out, []rune(part)[0])
		if len(out) == 2 {
			break
		}
	}
	return strings.ToUpper(string(out))
}

// NormalizeURL prefixes value with https:// when it has no scheme and
// reports whether the result is a valid absolute URL.
func NormalizeURL(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "https://" + value
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return "", false
	}
	return u.String(), true
}
