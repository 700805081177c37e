package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidLength indicates the number has too few or too many digits
	ErrInvalidLength = errors.New("phone number must have 10 digits, or 8 to 15 digits with a country code")

	// ErrInvalidPrefix indicates an Indian mobile number that doesn't start with 6, 7, 8 or 9
	ErrInvalidPrefix = errors.New("mobile number must start with 6, 7, 8 or 9")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")
)

const indiaCountryCode = "91"

// phoneRegex matches digits only
var phoneRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator validates booking contact numbers.
// Numbers without a country code are treated as Indian mobiles.
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate validates a contact number and returns it in E.164 form.
// Accepts 9876543210, 098765 43210, +91 98765-43210 or any +<country><number>.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	international := strings.HasPrefix(strings.TrimSpace(phone), "+")
	sanitized := v.Sanitize(phone)

	if !phoneRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	if international && !strings.HasPrefix(sanitized, indiaCountryCode) {
		if len(sanitized) < 8 || len(sanitized) > 15 {
			return "", ErrInvalidLength
		}
		return "+" + sanitized, nil
	}

	national := v.nationalNumber(sanitized)
	if len(national) != 10 {
		return "", ErrInvalidLength
	}
	if !v.IsValidPrefix(national) {
		return "", ErrInvalidPrefix
	}

	return "+" + indiaCountryCode + national, nil
}

// Sanitize removes separators from a phone number
func (v *PhoneValidator) Sanitize(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "", ".", "")
	return replacer.Replace(strings.TrimSpace(phone))
}

// nationalNumber strips a leading 91 or trunk 0 from an Indian number
func (v *PhoneValidator) nationalNumber(digits string) string {
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, indiaCountryCode):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	default:
		return digits
	}
}

// IsValidPrefix checks if a 10 digit number has a valid Indian mobile prefix
func (v *PhoneValidator) IsValidPrefix(phone string) bool {
	if phone == "" {
		return false
	}
	switch phone[0] {
	case '6', '7', '8', '9':
		return true
	default:
		return false
	}
}

// Format formats a number for display: +91 98765 43210 for Indian mobiles
func (v *PhoneValidator) Format(phone string) (string, error) {
	normalized, err := v.Validate(phone)
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(normalized, "+"+indiaCountryCode) && len(normalized) == 13 {
		return fmt.Sprintf("+%s %s %s", indiaCountryCode, normalized[3:8], normalized[8:]), nil
	}
	return normalized, nil
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
