package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kicksnairobi/footwear-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	Email  string
	JTI    string
}

// AccessTokenClaims is the typed JWT carried by storefront and admin clients.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	Email  string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}
