package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Tier   enums.SubscriptionTier
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
//
// The tier claim is advisory only: entitlement decisions always read the
// profile row, so a stale token cannot keep premium access after a downgrade.
type AccessTokenClaims struct {
	UserID uuid.UUID              `json:"user_id"`
	Email  string                 `json:"email"`
	Tier   enums.SubscriptionTier `json:"tier"`
	jwt.RegisteredClaims
}
