package auth

import "encoding/json"

// TokenResponse is what the /auth endpoints return on success. Depending on
// the backend version the token arrives as accessToken, access_token or
// token; all three are accepted.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	Message     string `json:"message,omitempty"`
}

func (t *TokenResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		AccessToken      string `json:"accessToken"`
		AccessTokenSnake string `json:"access_token"`
		Token            string `json:"token"`
		Message          string `json:"message"`
		Data             *struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Message = raw.Message
	switch {
	case raw.AccessToken != "":
		t.AccessToken = raw.AccessToken
	case raw.AccessTokenSnake != "":
		t.AccessToken = raw.AccessTokenSnake
	case raw.Token != "":
		t.AccessToken = raw.Token
	case raw.Data != nil:
		t.AccessToken = raw.Data.AccessToken
	}
	return nil
}

// ChildAccount is the account created by RegisterChild
type ChildAccount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
