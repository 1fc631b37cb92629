package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mxm "github.com/Daneel-Li/feedback-back/internal/models"

	"github.com/dgrijalva/jwt-go"
)

// SessionService 会话令牌，携带用户ID、昵称和会话内的管理员开关
type SessionService interface {
	IssueToken(user mxm.User) (string, error)
	ValidateToken(tokenString string) (mxm.User, error)
}

type jWTServiceImpl struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTService(key []byte, issuer string, ttl time.Duration) SessionService {
	return &jWTServiceImpl{key: key, issuer: issuer, ttl: ttl, now: time.Now}
}

// IssueToken generates JWT token
func (j *jWTServiceImpl) IssueToken(user mxm.User) (string, error) {
	if user.ID == "" {
		return "", errors.New("user id is required")
	}
	now := j.now()
	claims := jwt.MapClaims{
		"iss":      j.issuer,
		"sub":      user.ID,
		"name":     user.Name,
		"is_admin": user.IsAdmin,
		"exp":      now.Add(j.ttl).Unix(),
		"iat":      now.Unix(),
	}

	// Create token object using HS256 signing
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.key)
}

func (j *jWTServiceImpl) ValidateToken(tokenString string) (mxm.User, error) {
	// Parse token string, ignore "Bearer " prefix
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.key, nil
	})
	if err != nil {
		return mxm.User{}, fmt.Errorf("token parse failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return mxm.User{}, fmt.Errorf("invalid token claims")
	}

	// Verify timeliness and issuer
	if !claims.VerifyIssuer(j.issuer, true) {
		return mxm.User{}, fmt.Errorf("issuer validation failed")
	}
	if !claims.VerifyExpiresAt(j.now().Unix(), true) {
		return mxm.User{}, fmt.Errorf("token expired")
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return mxm.User{}, errors.New("sub claim missing or invalid type")
	}
	name, _ := claims["name"].(string)
	isAdmin, _ := claims["is_admin"].(bool)
	return mxm.User{ID: userID, Name: name, IsAdmin: isAdmin}, nil
}
