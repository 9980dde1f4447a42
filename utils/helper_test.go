package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"100", "100", false},
		{" 12.50 ", "12.5", false},
		{"-3", "-3", false},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tc := range cases {
		got, err := ParseDecimal(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDecimal(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", tc.in, err)
		}
		if got.String() != tc.expected {
			t.Fatalf("ParseDecimal(%q) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Format(DateLayout) != "2024-03-15" || d.Location().String() != "UTC" || d.Hour() != 0 {
		t.Fatalf("expected UTC midnight 2024-03-15, got %s", d)
	}
	if _, err := ParseDate("15/03/2024"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
	empty := " "
	if got, err := ParseOptionalDate(&empty); err != nil || got != nil {
		t.Fatalf("expected nil for blank optional date, got %v %v", got, err)
	}
	if got, err := ParseOptionalDate(nil); err != nil || got != nil {
		t.Fatalf("expected nil for missing optional date, got %v %v", got, err)
	}
}

func TestIsValidEmail(t *testing.T) {
	cases := map[string]bool{
		"owner@example.com":    true,
		"a.b+c@sub.example.my": true,
		"no-at-sign":           false,
		"x@y":                  false,
	}
	for in, expected := range cases {
		if got := IsValidEmail(in); got != expected {
			t.Fatalf("IsValidEmail(%q) expected %v, got %v", in, expected, got)
		}
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	if err := ValidatePhoneNumber("+60123456789", "MY"); err != nil {
		t.Fatalf("expected valid MY number, got %v", err)
	}
	if err := ValidatePhoneNumber("12", "MY"); err == nil {
		t.Fatalf("expected invalid number")
	}
}

func TestProcessValidationErrors(t *testing.T) {
	type input struct {
		Name   string `validate:"required"`
		Amount int    `validate:"gt=0"`
	}
	err := validator.New().Struct(input{})
	got := ProcessValidationErrors(err)
	if got["name"] != "required" || got["amount"] != "gt" {
		t.Fatalf("unexpected field errors %v", got)
	}
	other := ProcessValidationErrors(errors.New("unexpected EOF"))
	if other["body"] != "unexpected EOF" {
		t.Fatalf("expected body error, got %v", other)
	}
}

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(7, "jouhar", "DIRECTOR")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	claims, err := ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims: %v", err)
	}
	if claims.ID != 7 || claims.Username != "jouhar" || claims.Role != "DIRECTOR" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := ParseClaims(token + "x"); err == nil {
		t.Fatalf("expected tampered token to fail")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := SetUserIdInContext(context.Background(), 3)
	ctx = SetCompanyIdInContext(ctx, 9)
	ctx = SetCorrelationIdInContext(ctx, "cid-1")
	if id, ok := GetUserIdFromContext(ctx); !ok || id != 3 {
		t.Fatalf("expected user id 3, got %d %v", id, ok)
	}
	if id, ok := GetCompanyIdFromContext(ctx); !ok || id != 9 {
		t.Fatalf("expected company id 9, got %d %v", id, ok)
	}
	if cid, _ := GetCorrelationIdFromContext(ctx); cid != "cid-1" {
		t.Fatalf("expected correlation id, got %q", cid)
	}
	if _, ok := GetIsAdminFromContext(ctx); ok {
		t.Fatalf("admin flag must be unset")
	}
}

func TestPasswordHash(t *testing.T) {
	hashed, err := HashPasswordString("secret1")
	if err != nil {
		t.Fatalf("HashPasswordString: %v", err)
	}
	if ComparePassword(hashed, "secret1") != nil || ComparePassword(hashed, "nope") == nil {
		t.Fatalf("bcrypt comparison mismatch")
	}
}
