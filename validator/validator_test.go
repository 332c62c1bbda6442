package validator

import (
	"strings"
	"testing"
)

// TestValidatePhone tests the phone number validator.
func TestValidatePhone(t *testing.T) {
	type TestStruct struct {
		Phone string `validate:"omitempty,phone"`
	}

	v := New()

	validPhones := []string{
		"+12125552368",
		"+1 212 555 2368",
		"+447911123456",
		"2125552368", // national numbers default to US
	}
	for _, phone := range validPhones {
		if err := v.Validate(&TestStruct{Phone: phone}); err != nil {
			t.Errorf("Expected phone number %s to be valid, but got error: %v", phone, err)
		}
	}

	invalidPhones := []string{
		"12345",
		"phone",
	}
	for _, phone := range invalidPhones {
		if err := v.Validate(&TestStruct{Phone: phone}); err == nil {
			t.Errorf("Expected phone number %s to be invalid, but it was valid", phone)
		}
	}

	if err := v.Validate(&TestStruct{Phone: ""}); err != nil {
		t.Errorf("Expected empty phone number to be valid, but got error: %v", err)
	}
}

// TestValidateWallet tests the wallet address and transaction hash validators.
func TestValidateWallet(t *testing.T) {
	type TestStruct struct {
		From   string `json:"from" validate:"required,evmaddr"`
		TxHash string `json:"tx_hash" validate:"required,txhash"`
	}

	v := New()
	validHash := "0x" + strings.Repeat("ab", 32)

	valid := []TestStruct{
		{From: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", TxHash: validHash},
		{From: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", TxHash: "0x" + strings.Repeat("AB", 32)},
	}
	for _, s := range valid {
		if err := v.Validate(&s); err != nil {
			t.Errorf("Expected %+v to be valid, but got error: %v", s, err)
		}
	}

	invalid := []TestStruct{
		{From: "0x0000000000000000000000000000000000000000", TxHash: validHash}, // zero address
		{From: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA", TxHash: validHash},   // short address
		{From: "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed00", TxHash: validHash},
		{From: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", TxHash: strings.Repeat("ab", 32)}, // missing prefix
		{From: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", TxHash: "0x" + strings.Repeat("zz", 32)},
		{From: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", TxHash: "0xabcd"},
	}
	for _, s := range invalid {
		if err := v.Validate(&s); err == nil {
			t.Errorf("Expected %+v to be invalid, but it was valid", s)
		}
	}
}

// TestValidateTokenAmount tests the token amount validator.
func TestValidateTokenAmount(t *testing.T) {
	type TestStruct struct {
		Amount string `validate:"required,tokenamount"`
	}

	v := New()
	for _, amount := range []string{"1", "0.5", "1250.000001", " 3 "} {
		if err := v.Validate(&TestStruct{Amount: amount}); err != nil {
			t.Errorf("Expected amount %q to be valid, but got error: %v", amount, err)
		}
	}
	for _, amount := range []string{"0", "-1", "abc", ""} {
		if err := v.Validate(&TestStruct{Amount: amount}); err == nil {
			t.Errorf("Expected amount %q to be invalid, but it was valid", amount)
		}
	}
}

// TestValidateCurrency tests the currency validator.
func TestValidateCurrency(t *testing.T) {
	type TestStruct struct {
		Currency string `validate:"omitempty,currency"`
	}

	v := New()
	for _, cur := range []string{"usd", "EUR", ""} {
		if err := v.Validate(&TestStruct{Currency: cur}); err != nil {
			t.Errorf("Expected currency %q to be valid, but got error: %v", cur, err)
		}
	}
	for _, cur := range []string{"us", "dollar", "u$d"} {
		if err := v.Validate(&TestStruct{Currency: cur}); err == nil {
			t.Errorf("Expected currency %q to be invalid, but it was valid", cur)
		}
	}
}

// TestCheck tests the conversion of validation failures.
func TestCheck(t *testing.T) {
	type TestStruct struct {
		AgentID string `json:"agent_id" validate:"required,uuid"`
		Limit   int    `json:"limit" validate:"omitempty,min=1,max=500"`
		Email   string `json:"email" validate:"omitempty,email"`
	}

	v := New()
	if err := v.Check(&TestStruct{AgentID: "9b2d3b9e-5c0f-4a55-9d8c-3e1f2a4b5c6d", Limit: 10}); err != nil {
		t.Fatalf("Expected valid struct, got error: %v", err)
	}

	err := v.Check(&TestStruct{Limit: 1000, Email: "not-an-email"})
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("Expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 3 {
		t.Fatalf("Expected 3 validation errors, got %d: %v", len(verrs), verrs)
	}
	expected := map[string]string{
		"agent_id": "This field is required",
		"limit":    "Must be at most 500",
		"email":    "Invalid email format",
	}
	for _, ve := range verrs {
		if expected[ve.Field] != ve.Message {
			t.Errorf("Unexpected message for %s: %q", ve.Field, ve.Message)
		}
	}
	if !strings.Contains(err.Error(), "agent_id: This field is required") {
		t.Errorf("Unexpected error string: %s", err.Error())
	}
}
