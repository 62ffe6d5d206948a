package exchange

import (
	"encoding/json"
	"fmt"
)

// TokenResponse is the provider's token endpoint answer. Raw keeps every field
// the provider sent; the typed fields are read from it.
type TokenResponse struct {
	Raw          map[string]any
	AccessToken  string
	IDToken      string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
}

func parseTokenResponse(body []byte) (*TokenResponse, error) {
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTokenResponse, err)
	}
	tok := &TokenResponse{Raw: raw}
	tok.AccessToken, _ = raw["access_token"].(string)
	tok.IDToken, _ = raw["id_token"].(string)
	tok.RefreshToken, _ = raw["refresh_token"].(string)
	tok.TokenType, _ = raw["token_type"].(string)
	tok.Scope, _ = raw["scope"].(string)
	if v, ok := raw["expires_in"].(float64); ok {
		tok.ExpiresIn = int64(v)
	}
	return tok, nil
}

// MarshalJSON emits the provider's object unchanged.
func (t *TokenResponse) MarshalJSON() ([]byte, error) {
	if t.Raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.Raw)
}
