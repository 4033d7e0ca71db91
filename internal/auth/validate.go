package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"expensetracker/internal/core"
)

const (
	maxUsernameLength = 150
	minPasswordLength = 8
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// commonPasswords rejects the most frequently breached passwords.
var commonPasswords = map[string]bool{
	"password": true, "password1": true, "12345678": true, "123456789": true,
	"1234567890": true, "qwerty123": true, "qwertyuiop": true, "iloveyou": true,
	"sunshine1": true, "football": true, "baseball": true, "welcome1": true,
	"abc12345": true, "letmein1": true, "trustno1": true, "passw0rd": true,
	"11111111": true, "00000000": true, "princess": true, "dragon12": true,
}

// RegisterInput carries the raw sign-up form.
type RegisterInput struct {
	Username  string
	Email     string
	Password1 string
	Password2 string
}

// Validate checks the sign-up form and returns the normalised username and
// email. Field keys match the form input names.
func (in RegisterInput) Validate() (username, email string, err error) {
	errs := core.FieldErrors{}

	username = strings.TrimSpace(in.Username)
	switch {
	case username == "":
		errs.Add("username", "This field is required.")
	case utf8.RuneCountInString(username) > maxUsernameLength:
		errs.Add("username", "Ensure this value has at most 150 characters.")
	case !usernamePattern.MatchString(username):
		errs.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}

	email = strings.TrimSpace(in.Email)
	if email == "" {
		errs.Add("email", "This field is required.")
	} else if addr, perr := mail.ParseAddress(email); perr != nil || addr.Address != email {
		errs.Add("email", "Enter a valid email address.")
	}

	if in.Password1 == "" {
		errs.Add("password1", "This field is required.")
	}
	if in.Password2 == "" {
		errs.Add("password2", "This field is required.")
	} else if in.Password1 != in.Password2 {
		errs.Add("password2", "The two password fields didn't match.")
	} else if msg := passwordProblem(in.Password2, username); msg != "" {
		errs.Add("password2", msg)
	}

	if err := errs.Err(); err != nil {
		return "", "", err
	}
	return username, email, nil
}

func passwordProblem(password, username string) string {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "This password is too short. It must contain at least 8 characters."
	}
	lower := strings.ToLower(password)
	if username != "" && strings.Contains(lower, strings.ToLower(username)) {
		return "The password is too similar to the username."
	}
	if commonPasswords[lower] {
		return "This password is too common."
	}
	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return "This password is entirely numeric."
	}
	return ""
}
