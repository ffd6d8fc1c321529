package model

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func TestParseUserType(t *testing.T) {
	tests := []struct {
		segment string
		want    UserType
		ok      bool
	}{
		{"borrowers", UserTypeBorrower, true},
		{"investors", UserTypeInvestor, true},
		{"borrower", 0, false},
		{"admins", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseUserType(tt.segment)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseUserType(%q) = (%v, %v), want (%v, %v)", tt.segment, got, ok, tt.want, tt.ok)
		}
		if ok && got.PathSegment() != tt.segment {
			t.Errorf("PathSegment() = %q, want %q", got.PathSegment(), tt.segment)
		}
	}
}

func TestNewUser_SetsExactlyOneVariant(t *testing.T) {
	b := NewUser(UserTypeBorrower, "Alice", "alice@example.com", "hash", 1)
	if b.Borrower == nil || b.Investor != nil {
		t.Fatalf("borrower variant not set correctly: %+v", b)
	}
	if b.Email() != "alice@example.com" || b.Reference() == uuid.Nil {
		t.Errorf("Email() = %q, Reference() = %v", b.Email(), b.Reference())
	}

	i := NewUser(UserTypeInvestor, "Bob", "bob@example.com", "hash", 1)
	if i.Investor == nil || i.Borrower != nil {
		t.Fatalf("investor variant not set correctly: %+v", i)
	}
}

func TestUser_Matches(t *testing.T) {
	u := NewUser(UserTypeBorrower, "Alice", "alice@example.com", "hash", 1)
	ref := u.Reference().String()

	if !u.Matches(UserTypeBorrower, ref) {
		t.Error("Matches() should be true for same type and reference")
	}
	if u.Matches(UserTypeInvestor, ref) {
		t.Error("Matches() should be false for a different type")
	}
	if u.Matches(UserTypeBorrower, uuid.NewString()) {
		t.Error("Matches() should be false for a different reference")
	}
	if u.Matches(UserTypeBorrower, "not-a-uuid") {
		t.Error("Matches() should be false for an unparsable reference")
	}
}

func TestUser_CanBeCreated(t *testing.T) {
	u := NewUser(UserTypeInvestor, "Bob", "bob@example.com", "hash", 1)
	if u.CanBeCreated() {
		t.Error("CanBeCreated() should be false without address1 and city")
	}
	u.Address1 = "1 Main St"
	u.City = "Toronto"
	if !u.CanBeCreated() {
		t.Error("CanBeCreated() should be true when required fields are set")
	}
	u.CountryID = 0
	if u.CanBeCreated() {
		t.Error("CanBeCreated() should be false without a country")
	}
}

func TestUserEditable_Validate(t *testing.T) {
	valid := UserEditable{Name: strPtr("Alice"), Address1: strPtr("1 Main St"), City: strPtr("Toronto")}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	missing := UserEditable{Name: strPtr("Alice"), City: strPtr("Toronto")}
	err := missing.Validate()
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != ErrCodeInvalidProfile {
		t.Errorf("Validate() error = %v, want %s", err, ErrCodeInvalidProfile)
	}
}

func TestUser_ApplyEditable_ClearsAbsentOptionalFields(t *testing.T) {
	u := NewUser(UserTypeBorrower, "Alice", "alice@example.com", "hash", 1)
	u.Address2 = strPtr("Unit 4")
	u.Borrower.Phone = strPtr("555-0100")

	u.ApplyEditable(UserEditable{
		Name:     strPtr("Alice B"),
		Address1: strPtr("2 Main St"),
		City:     strPtr("Ottawa"),
		Employer: strPtr("Acme"),
	})

	if u.Name != "Alice B" || u.Address1 != "2 Main St" || u.City != "Ottawa" {
		t.Errorf("required fields not applied: %+v", u)
	}
	if u.Address2 != nil || u.Borrower.Phone != nil {
		t.Error("absent optional fields should become nil")
	}
	if u.Borrower.Employer == nil || *u.Borrower.Employer != "Acme" {
		t.Error("Employer should be set")
	}
}

func TestUser_Viewable(t *testing.T) {
	u := NewUser(UserTypeBorrower, "Alice", "alice@example.com", "hash", 1)
	u.BankConnections = []BankConnection{{Reference: uuid.New(), Institution: "001", Transit: "12345", Account: "987654321"}}

	plain := u.Viewable("CA", false)
	if plain.Banks != nil {
		t.Error("Banks should be omitted without connected info")
	}
	if plain.Country != "CA" || plain.Type != "borrower" {
		t.Errorf("Viewable() = %+v", plain)
	}

	connected := u.Viewable("CA", true)
	if len(connected.Banks) != 1 {
		t.Fatalf("len(Banks) = %d, want 1", len(connected.Banks))
	}
	if connected.Banks[0].Account != "*****4321" {
		t.Errorf("Account = %q, want masked", connected.Banks[0].Account)
	}
}
