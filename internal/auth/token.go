package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/cityteam/stats-sub000/internal/core"
)

const issuer = "stats"

type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Scope    string `json:"scope"`
	jwt.StandardClaims
}

// Token is the response of a successful password grant.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an HS256 token carrying the user's scope.
func (i *Issuer) Issue(u core.User) (Token, error) {
	now := i.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:   u.ID,
		Username: u.Username,
		Scope:    u.Scope,
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(i.ttl).Unix(),
		},
	})
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(i.ttl / time.Second),
		Scope:       u.Scope,
	}, nil
}

// Verify parses token and returns its principal. Any failure is reported
// as core.ErrUnauthorized.
func (i *Issuer) Verify(token string) (Principal, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}
	if claims.Issuer != issuer {
		return Principal{}, fmt.Errorf("%w: unexpected issuer %q", core.ErrUnauthorized, claims.Issuer)
	}
	scope, err := core.ParseScope(claims.Scope)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}
	return Principal{UserID: claims.UserID, Username: claims.Username, Scope: scope}, nil
}
