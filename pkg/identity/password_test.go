package identity

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("new salt: %v", err)
	}
	hash, err := HashPassword("correct horse battery staple", salt)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !VerifyPassword("correct horse battery staple", salt, hash) {
		t.Fatal("expected matching password to verify")
	}
	if VerifyPassword("Correct horse battery staple", salt, hash) {
		t.Fatal("expected wrong password to fail")
	}
	if VerifyPassword("correct horse battery staple", salt, "") {
		t.Fatal("expected empty stored hash to fail")
	}
}

func TestFreshSaltPerAccount(t *testing.T) {
	s1, err := NewSalt()
	if err != nil {
		t.Fatalf("new salt: %v", err)
	}
	s2, err := NewSalt()
	if err != nil {
		t.Fatalf("new salt: %v", err)
	}
	if s1 == s2 {
		t.Fatal("expected salts to differ")
	}

	h1, err := HashPassword("pw", s1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := HashPassword("pw", s2)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected same password under different salts to hash differently")
	}

	again, err := HashPassword("pw", s1)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != again {
		t.Fatal("expected hashing to be deterministic for a fixed salt")
	}
}
