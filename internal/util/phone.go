package util

import (
	"regexp"
	"strings"
)

// phonePatterns maps ISO country codes to the E.164 shape accepted for that
// country's dial code. Malformed numbers are rejected at ingestion so the
// lifecycle core never sees them.
var phonePatterns = map[string]*regexp.Regexp{
	"SN": regexp.MustCompile(`^\+221[0-9]{9}$`),
	"FR": regexp.MustCompile(`^\+33[1-9][0-9]{8}$`),
	"MA": regexp.MustCompile(`^\+212[0-9]{9}$`),
	"DZ": regexp.MustCompile(`^\+213[0-9]{9}$`),
	"TN": regexp.MustCompile(`^\+216[0-9]{8}$`),
	"ML": regexp.MustCompile(`^\+223[0-9]{8}$`),
	"BF": regexp.MustCompile(`^\+226[0-9]{8}$`),
	"NE": regexp.MustCompile(`^\+227[0-9]{8}$`),
	"GM": regexp.MustCompile(`^\+220[0-9]{7}$`),
	"GN": regexp.MustCompile(`^\+224[0-9]{9}$`),
	"MR": regexp.MustCompile(`^\+222[0-9]{8}$`),
	"CI": regexp.MustCompile(`^\+225[0-9]{10}$`),
	"GH": regexp.MustCompile(`^\+233[0-9]{9}$`),
	"TG": regexp.MustCompile(`^\+228[0-9]{8}$`),
	"BJ": regexp.MustCompile(`^\+229[0-9]{8}$`),
	"NG": regexp.MustCompile(`^\+234[0-9]{10}$`),
	"CM": regexp.MustCompile(`^\+237[0-9]{9}$`),
	"US": regexp.MustCompile(`^\+1[0-9]{10}$`),
	"GB": regexp.MustCompile(`^\+44[0-9]{10}$`),
	"DE": regexp.MustCompile(`^\+49[0-9]{10,11}$`),
	"IT": regexp.MustCompile(`^\+39[0-9]{9,10}$`),
	"ES": regexp.MustCompile(`^\+34[0-9]{9}$`),
	"PT": regexp.MustCompile(`^\+351[0-9]{9}$`),
	"BE": regexp.MustCompile(`^\+32[0-9]{9}$`),
	"CH": regexp.MustCompile(`^\+41[0-9]{9}$`),
	"NL": regexp.MustCompile(`^\+31[0-9]{9}$`),
}

// IsValidPhone reports whether phone matches any supported country pattern.
func IsValidPhone(phone string) bool {
	for _, pattern := range phonePatterns {
		if pattern.MatchString(phone) {
			return true
		}
	}
	return false
}

// CountryFromPhone returns the ISO country code matching phone, or "".
func CountryFromPhone(phone string) string {
	for code, pattern := range phonePatterns {
		if pattern.MatchString(phone) {
			return code
		}
	}
	return ""
}

// NormalizePhone strips spaces, dots and dashes from user input before
// validation.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", ".", "", "-", "").Replace(strings.TrimSpace(phone))
}
