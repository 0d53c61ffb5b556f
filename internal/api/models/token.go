package models

// TokenRegisterRequest is the body of PUT /v1/users/{userId}/fcm-token.
type TokenRegisterRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// TokenResponse is the body of GET /v1/users/{userId}/fcm-token.
type TokenResponse struct {
	UserID     string    `json:"userId"`
	TokenLast4 string    `json:"tokenLast4"`
	UpdatedAt  Timestamp `json:"updatedAt"`
}
