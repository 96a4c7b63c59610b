package token

// Pair is the credential pair issued by the API on sign-in, sign-up and refresh.
// Expiry values are in seconds.
type Pair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	AccessExpiresIn  int64  `json:"accessExpiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
}

// Tokens holds the values currently persisted. A nil field means the entry is absent,
// which is not the same as an empty value.
type Tokens struct {
	AccessToken  *string
	RefreshToken *string
}

// HasRefreshToken reports whether a refresh token is present
func (t Tokens) HasRefreshToken() bool {
	return t.RefreshToken != nil
}
