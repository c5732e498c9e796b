package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken("secret", id, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken("secret", token, time.Time{})
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != id {
		t.Fatalf("user id = %s, want %s", claims.UserID, id)
	}
}

func TestParseTokenRejects(t *testing.T) {
	id := uuid.New()
	token, _ := GenerateToken("secret", id, time.Hour)

	if _, err := ParseToken("other", token, time.Time{}); err == nil {
		t.Error("wrong secret accepted")
	}
	if _, err := ParseToken("secret", "not-a-token", time.Time{}); err == nil {
		t.Error("garbage accepted")
	}

	expired, _ := GenerateToken("secret", id, -time.Minute)
	if _, err := ParseToken("secret", expired, time.Time{}); err == nil {
		t.Error("expired token accepted")
	}

	_, err := ParseToken("secret", token, time.Now().Add(time.Hour))
	if !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("cutoff: got %v, want ErrTokenRevoked", err)
	}

	if _, err := ParseToken("secret", token, time.Now().Add(-time.Hour)); err != nil {
		t.Errorf("token minted after cutoff rejected: %v", err)
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("wrong password accepted")
	}
}

func TestGenerateTempPassword(t *testing.T) {
	a, err := GenerateTempPassword(12)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateTempPassword(12)
	if len(a) != 12 || a == b {
		t.Fatalf("weak temp passwords %q %q", a, b)
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		page, limit             int
		wantPage, wantLimit, off int
	}{
		{1, 20, 1, 20, 0},
		{3, 10, 3, 10, 20},
		{0, 0, 1, 20, 0},
		{-2, 500, 1, 100, 0},
	}
	for _, tt := range tests {
		p := NewPagination(tt.page, tt.limit)
		if p.Page != tt.wantPage || p.Limit != tt.wantLimit || p.Offset != tt.off {
			t.Errorf("NewPagination(%d,%d) = %+v", tt.page, tt.limit, p)
		}
	}

	p := NewPagination(1, 10)
	if p.Pages(0) != 0 || p.Pages(10) != 1 || p.Pages(11) != 2 {
		t.Error("Pages miscounted")
	}
}
