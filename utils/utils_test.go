package utils

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("password stored in the clear")
	}
	if !CheckPasswordHash("correct horse battery staple", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrong password", hash) {
		t.Fatal("wrong password accepted")
	}
}
