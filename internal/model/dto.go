package model

type LoginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse accepts the camelCase fields the refresh endpoint sends
// and the snake_case fields the login endpoint uses.
type RefreshResponse struct {
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
	AccessTokenSnake  string `json:"access_token"`
	RefreshTokenSnake string `json:"refresh_token"`
}

// Normalize folds both spellings into a TokenPair. camelCase wins.
func (r RefreshResponse) Normalize() TokenPair {
	pair := TokenPair{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
	if pair.AccessToken == "" {
		pair.AccessToken = r.AccessTokenSnake
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = r.RefreshTokenSnake
	}
	return pair
}

// ErrorResponse covers the error bodies the backend is known to send.
type ErrorResponse struct {
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
