package model

// TokenPair is the result of a login or a silent refresh. Refresh responses
// carry only the two tokens; UserID and Role stay empty there.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Record is the persisted session. Empty strings mean the field is absent.
type Record struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Role         string
	LoggedIn     bool
	RememberMe   bool
}

// HasTokens reports whether both tokens are present.
func (r Record) HasTokens() bool {
	return r.AccessToken != "" && r.RefreshToken != ""
}

// IsLoggedIn is true only when the flag is raised and both tokens are present.
func (r Record) IsLoggedIn() bool {
	return r.LoggedIn && r.HasTokens()
}
