package dto

// IdentityLoginRequest carries the signed assertion issued by the upstream
// identity provider.
type IdentityLoginRequest struct {
	Assertion string `json:"assertion"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthMeResponse struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// AuthTokensResponse is returned by login and refresh. The refresh token is
// single use; every refresh returns a new one.
type AuthTokensResponse struct {
	TokenType    string         `json:"token_type"`
	AccessToken  string         `json:"access_token"`
	ExpiresInSec int64          `json:"expires_in_sec"`
	RefreshToken string         `json:"refresh_token"`
	Me           AuthMeResponse `json:"me"`
}

type LogoutResponse struct {
	OK bool `json:"ok"`
}
