package templating

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

var funcMap = template.FuncMap{
	"heading": FormatHeading,
	"upper":   strings.ToUpper,
	"title":   Title,
}

// FormatHeading pads a numeric heading to three digits, "7" becomes "007".
// Values that are not numbers are returned unchanged.
func FormatHeading(s string) string {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	n %= 360
	if n < 0 {
		n += 360
	}
	return fmt.Sprintf("%03d", n)
}

// Title upper-cases the first letter of s
func Title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
