package utils

import (
	"testing"
)

func TestJwtGenerateAndValidate(t *testing.T) {
	token, err := JwtGenerate(42, "Morgan Reyes", "manager")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if !parsed.Valid {
		t.Fatalf("token should be valid")
	}

	claim, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claim.ID != 42 {
		t.Errorf("claim.ID = %d, want 42", claim.ID)
	}
	if claim.Name != "Morgan Reyes" {
		t.Errorf("claim.Name = %q, want Morgan Reyes", claim.Name)
	}
	if claim.Role != "manager" {
		t.Errorf("claim.Role = %q, want manager", claim.Role)
	}
}

func TestJwtValidateRejectsGarbage(t *testing.T) {
	if _, err := JwtValidate("not-a-token"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}
