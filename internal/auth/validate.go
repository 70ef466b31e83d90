package auth

import (
	"strings"
)

// CodeLength is the number of digits in an authenticator code.
const CodeLength = 6

// UserTypes are the account kinds offered at sign-up.
var UserTypes = []string{"IP Firm", "IP Holder"}

const (
	msgInvalidEmail    = "Please enter a valid email address."
	msgUnknownEmail    = "This email is not registered with AIP Genius."
	msgIncompleteCode  = "Please enter the full 6-digit code."
	msgInvalidCode     = "Invalid code. Please try again."
	msgGeneric         = "Something went wrong. Please try again."
	msgNameRequired    = "First and last name are required."
	msgCompanyRequired = "Company is required."
	msgAgreement       = "You must accept the User Agreement."
	msgUserType        = "Please choose an account type."
)

// Result is the outcome of a flow step. A failed step carries a message for
// the user; it is not an error.
type Result struct {
	OK      bool
	Message string
}

func ok() Result { return Result{OK: true} }

func fail(msg string) Result { return Result{Message: msg} }

// NormalizeEmail trims and lower-cases an address as typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) Result {
	if email == "" || !strings.Contains(email, "@") {
		return fail(msgInvalidEmail)
	}
	return ok()
}

func ValidateCode(code string) Result {
	if len(code) != CodeLength {
		return fail(msgIncompleteCode)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return fail(msgIncompleteCode)
		}
	}
	return ok()
}

// ValidateSignUp checks the form in the order its fields are shown.
func ValidateSignUp(req SignUpRequest) Result {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return fail(msgNameRequired)
	}
	if r := ValidateEmail(NormalizeEmail(req.Email)); !r.OK {
		return r
	}
	if strings.TrimSpace(req.Company) == "" {
		return fail(msgCompanyRequired)
	}
	if !validUserType(req.UserType) {
		return fail(msgUserType)
	}
	if !req.AcceptedAgreement {
		return fail(msgAgreement)
	}
	return ok()
}

// NormalizeSignUp returns req with the values that are sent to the backend.
func NormalizeSignUp(req SignUpRequest) SignUpRequest {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = NormalizeEmail(req.Email)
	req.Company = strings.TrimSpace(req.Company)
	if req.UserType == "" {
		req.UserType = UserTypes[0]
	}
	return req
}

func validUserType(t string) bool {
	for _, u := range UserTypes {
		if u == t {
			return true
		}
	}
	return false
}
