// Package money converts between major currency units (rupees) and the
// minor units (paise) the gateway works in, and derives receipt strings.
package money

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// ReceiptPrefix tags every receipt so webhooks can recover the booking id.
	ReceiptPrefix = "bk_"

	// MaxReceiptIDLength keeps prefix+id well under the gateway's 40 character limit.
	MaxReceiptIDLength = 30

	minorPerMajor = 100
)

var hundred = decimal.NewFromInt(minorPerMajor)

// ToMinorUnits converts a major-unit amount to minor units, rounding half away
// from zero on the decimal value. 100.005 becomes 10001, not 10000.
func ToMinorUnits(major float64) int64 {
	return decimal.NewFromFloat(major).Mul(hundred).Round(0).IntPart()
}

// ToMajorUnits converts minor units back to major units.
func ToMajorUnits(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}

// Deposit returns the up-front share of total, rounded to whole major units.
func Deposit(total, rate float64) float64 {
	return decimal.NewFromFloat(total).Mul(decimal.NewFromFloat(rate)).Round(0).InexactFloat64()
}

// Remaining returns total minus the deposit.
func Remaining(total, deposit float64) float64 {
	return decimal.NewFromFloat(total).Sub(decimal.NewFromFloat(deposit)).InexactFloat64()
}

// BuildReceipt returns "bk_" followed by at most 30 characters of bookingID.
func BuildReceipt(bookingID string) string {
	if utf8.RuneCountInString(bookingID) > MaxReceiptIDLength {
		bookingID = string([]rune(bookingID)[:MaxReceiptIDLength])
	}
	return ReceiptPrefix + bookingID
}

// ParseReceipt strips the receipt prefix. ok is false when the prefix is
// missing or nothing follows it.
func ParseReceipt(receipt string) (bookingID string, ok bool) {
	if !strings.HasPrefix(receipt, ReceiptPrefix) {
		return "", false
	}
	bookingID = strings.TrimPrefix(receipt, ReceiptPrefix)
	return bookingID, bookingID != ""
}

// Format renders a rupee amount for emails, e.g. ₹1,250.50.
func Format(amount float64) string {
	fixed := decimal.NewFromFloat(amount).Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	sign := ""
	if amount < 0 {
		sign = "-"
	}
	return sign + "₹" + grouped.String() + "." + frac
}

// SameAmount reports whether two major-unit amounts are equal to the paisa.
func SameAmount(a, b float64) bool {
	return ToMinorUnits(a) == ToMinorUnits(b)
}
