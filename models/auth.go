package models

// AuthTokens holds the opaque backend session identifier for the current user.
type AuthTokens struct {
	SessionID string `json:"sessionId"`
}

// AuthUser is the denormalized identity snapshot attached to a session.
type AuthUser struct {
	ID        string  `json:"id"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatarUrl"`
}
