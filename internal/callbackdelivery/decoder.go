package callbackdelivery

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// ErrAuthenticationFailed indicates that no decoder strategy could
// resolve the opaque player token to an account.
var ErrAuthenticationFailed = errors.New("player token authentication failed")

// TokenDecoder resolves an opaque player token to a player id.
//
// Game providers echo back whatever token they were launched with, so
// the adapter tries a fixed sequence of decoders: first success wins.
type TokenDecoder interface {
	TryDecode(token string) (string, error)
}

// JWTDecoder verifies an HS256-signed player token and extracts the
// player id claim.
type JWTDecoder struct {
	secret string
}

// NewJWTDecoder returns a JWTDecoder with the given signing secret.
func NewJWTDecoder(secret string) *JWTDecoder {
	return &JWTDecoder{secret: secret}
}

// TryDecode implements TokenDecoder.
func (d *JWTDecoder) TryDecode(token string) (string, error) {
	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAuthenticationFailed
		}

		return []byte(d.secret), nil
	})
	if err != nil {
		return "", err
	}

	for _, claim := range []string{"player_id", "user_id", "sub"} {
		if v, ok := claims[claim].(string); ok && v != "" {
			return v, nil
		}
	}

	return "", ErrAuthenticationFailed
}

// Base64Decoder decodes a base64 player reference: either a JSON object
// carrying player_id/user_id or the raw player id itself.
type Base64Decoder struct{}

// TryDecode implements TokenDecoder.
func (d Base64Decoder) TryDecode(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(token)
		if err != nil {
			return "", err
		}
	}

	decoded := strings.TrimSpace(string(raw))
	if decoded == "" {
		return "", ErrAuthenticationFailed
	}

	if strings.HasPrefix(decoded, "{") {
		var ref struct {
			PlayerID string `json:"player_id"`
			UserID   string `json:"user_id"`
		}

		if err := json.Unmarshal([]byte(decoded), &ref); err != nil {
			return "", err
		}

		if ref.PlayerID != "" {
			return ref.PlayerID, nil
		}

		if ref.UserID != "" {
			return ref.UserID, nil
		}

		return "", ErrAuthenticationFailed
	}

	return decoded, nil
}

// DecodePlayerToken runs the decoder chain in order and returns the
// first successfully decoded player id.
func DecodePlayerToken(decoders []TokenDecoder, token string) (string, error) {
	if token == "" {
		return "", ErrAuthenticationFailed
	}

	for _, d := range decoders {
		if playerID, err := d.TryDecode(token); err == nil {
			return playerID, nil
		}
	}

	return "", ErrAuthenticationFailed
}
