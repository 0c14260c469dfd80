package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go-accounts/internal/util"
	"go-accounts/pkg/apierror"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	maxEmailLength    = 100
	minPasswordLength = 8
	maxPasswordLength = 64
	maxPasswordBytes  = 72
	maxNameLength     = 50
	maxPhoneLength    = 20
	maxBioLength      = 500
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9 ()-]{3,20}$`)
)

func validateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return "", apierror.BadRequest("username must be between 3 and 50 characters", "username")
	}
	if !usernamePattern.MatchString(username) {
		return "", apierror.BadRequest("username may only contain letters, digits, '_', '.' and '-'", "username")
	}
	return username, nil
}

// normalizeEmail validates an address and returns it lowercased.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > maxEmailLength {
		return "", apierror.BadRequest("email must be between 1 and 100 characters", "email")
	}
	if !isEmail(email) {
		return "", apierror.BadRequest("email is not a valid address", "email")
	}
	return email, nil
}

func isEmail(identifier string) bool {
	if !strings.Contains(identifier, "@") {
		return false
	}
	addr, err := mail.ParseAddress(identifier)
	return err == nil && addr.Address == identifier
}

func validatePassword(password string) error {
	if n := utf8.RuneCountInString(password); n < minPasswordLength || n > maxPasswordLength {
		return apierror.BadRequest("password must be between 8 and 64 characters", "password")
	}
	if len(password) > maxPasswordBytes {
		return apierror.BadRequest("password must be at most 72 bytes", "password")
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return apierror.BadRequest("password must contain upper and lower case letters, a digit and a symbol", "password")
	}
	return nil
}

// cleanText strips control and invisible characters from free-form profile
// text and enforces a rune limit.
func cleanText(field string, value string, limit int) (string, error) {
	cleaned := util.StripInvisible(value)
	if utf8.RuneCountInString(cleaned) > limit {
		return "", apierror.BadRequest(field+" is too long", field)
	}
	return cleaned, nil
}

func validatePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	if len(phone) > maxPhoneLength || !phonePattern.MatchString(phone) {
		return "", apierror.BadRequest("phone number is invalid", "phone")
	}
	return phone, nil
}
