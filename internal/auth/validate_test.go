package auth

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		ok    bool
	}{
		{"valid", "jane@example.com", true},
		{"empty", "", false},
		{"missing at", "jane.example.com", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := ValidateEmail(tc.email)
			if r.OK != tc.ok {
				t.Errorf("Expected OK=%v, got %+v", tc.ok, r)
			}
			if !r.OK && r.Message != msgInvalidEmail {
				t.Errorf("Expected message %q, got %q", msgInvalidEmail, r.Message)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Jane.Doe@Example.COM "); got != "jane.doe@example.com" {
		t.Errorf("Expected normalised address, got %q", got)
	}
}

func TestValidateCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		ok   bool
	}{
		{"six digits", "123456", true},
		{"too short", "12345", false},
		{"too long", "1234567", false},
		{"not digits", "12a456", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if r := ValidateCode(tc.code); r.OK != tc.ok {
				t.Errorf("Expected OK=%v, got %+v", tc.ok, r)
			}
		})
	}
}

func TestValidateSignUp(t *testing.T) {
	valid := SignUpRequest{
		FirstName:         "Jane",
		LastName:          "Doe",
		Email:             "jane@example.com",
		UserType:          "IP Firm",
		Company:           "Doe & Partners",
		AcceptedAgreement: true,
	}

	tests := []struct {
		name     string
		mutate   func(*SignUpRequest)
		expected string
	}{
		{"valid", func(r *SignUpRequest) {}, ""},
		{"missing last name", func(r *SignUpRequest) { r.LastName = "  " }, msgNameRequired},
		{"bad email", func(r *SignUpRequest) { r.Email = "jane" }, msgInvalidEmail},
		{"missing company", func(r *SignUpRequest) { r.Company = "" }, msgCompanyRequired},
		{"unknown user type", func(r *SignUpRequest) { r.UserType = "Pirate" }, msgUserType},
		{"agreement not accepted", func(r *SignUpRequest) { r.AcceptedAgreement = false }, msgAgreement},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			r := ValidateSignUp(req)
			if tc.expected == "" {
				if !r.OK {
					t.Fatalf("expected valid form, got %q", r.Message)
				}
				return
			}
			if r.OK || r.Message != tc.expected {
				t.Errorf("Expected %q, got %+v", tc.expected, r)
			}
		})
	}
}

func TestNormalizeSignUp_DefaultsUserType(t *testing.T) {
	req := NormalizeSignUp(SignUpRequest{FirstName: " Jane ", Email: " JANE@EXAMPLE.COM"})
	if req.UserType != UserTypes[0] {
		t.Errorf("Expected default user type %q, got %q", UserTypes[0], req.UserType)
	}
	if req.FirstName != "Jane" || req.Email != "jane@example.com" {
		t.Errorf("fields not normalised: %+v", req)
	}
}
