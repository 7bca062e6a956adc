package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kickoffclub/hq-backend/pkg/config"
	"github.com/kickoffclub/hq-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "kickoffclub",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := AccessTokenPayload{
		UserID: userID,
		Email:  "coach@example.com",
		Tier:   enums.SubscriptionTierPremium,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "coach@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Tier != enums.SubscriptionTierPremium {
		t.Fatalf("unexpected tier %s", claims.Tier)
	}
	if claims.Issuer != "kickoffclub" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected generated jti")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	base := config.JWTConfig{Secret: "secret", Issuer: "kickoffclub", ExpirationMinutes: 30}
	payload := AccessTokenPayload{UserID: uuid.New(), Tier: enums.SubscriptionTierFree}

	cases := []struct {
		name    string
		cfg     config.JWTConfig
		payload AccessTokenPayload
		wantSub string
	}{
		{"missing secret", config.JWTConfig{Issuer: "kickoffclub", ExpirationMinutes: 30}, payload, "secret"},
		{"missing issuer", config.JWTConfig{Secret: "secret", ExpirationMinutes: 30}, payload, "issuer"},
		{"zero expiry", config.JWTConfig{Secret: "secret", Issuer: "kickoffclub"}, payload, "expiration"},
		{"nil user", base, AccessTokenPayload{Tier: enums.SubscriptionTierFree}, "user id"},
		{"bad tier", base, AccessTokenPayload{UserID: uuid.New(), Tier: enums.SubscriptionTier("gold")}, "tier"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MintAccessToken(tc.cfg, time.Now(), tc.payload)
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("expected error containing %q, got %v", tc.wantSub, err)
			}
		})
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "kickoffclub", ExpirationMinutes: 1}
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{
		UserID: uuid.New(),
		Tier:   enums.SubscriptionTierBasic,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "kickoffclub", ExpirationMinutes: 30}
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Tier:   enums.SubscriptionTierBasic,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected token signed with other secret to be rejected")
	}
}
