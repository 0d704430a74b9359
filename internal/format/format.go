// Package format renders money, numbers and dates for templates.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func printer(lang string) *message.Printer {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

func german(lang string) bool {
	return strings.HasPrefix(strings.ToLower(lang), "de")
}

// Currency formats an amount in minor units.
// Currency(123456, "USD", "en") => "$1,234.56"
// Currency(123456, "EUR", "de") => "1.234,56 €"
func Currency(minor int64, currency, lang string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	p := printer(lang)
	neg := minor < 0
	if neg {
		minor = -minor
	}
	amount := p.Sprintf("%.2f", float64(minor)/100)
	sign := ""
	if neg {
		sign = "-"
	}
	switch currency {
	case "USD":
		return sign + "$" + amount
	case "EUR":
		if german(lang) {
			return sign + amount + " €"
		}
		return sign + "€" + amount
	default:
		return sign + amount + " " + currency
	}
}

// Money formats a whole-unit float amount without decimals, as shown by the
// ROI calculator.
func Money(v float64, currency, lang string) string {
	return strings.Replace(Currency(int64(math.Round(v))*100, currency, lang), decimalTail(lang), "", 1)
}

func decimalTail(lang string) string {
	if german(lang) {
		return ",00"
	}
	return ".00"
}

// Number groups thousands and keeps up to digits fractional digits.
func Number(v float64, digits int, lang string) string {
	if digits < 0 {
		digits = 0
	}
	return printer(lang).Sprintf("%."+strconv.Itoa(digits)+"f", v)
}

// Date formats t in a locale-friendly short form.
func Date(t time.Time, lang string) string {
	if t.IsZero() {
		return ""
	}
	if german(lang) {
		return t.Format("02.01.2006")
	}
	return t.Format("Jan 2, 2006")
}
