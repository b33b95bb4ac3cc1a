package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Omarrio321/ElectronicsPOS/internal/domain"
	"github.com/Omarrio321/ElectronicsPOS/internal/xid"
)

const (
	tokenIssuer  = "electronics-pos"
	userIDPrefix = "usr"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthManager keeps bcrypt credentials in memory and issues HS256 tokens
// carrying the user id and role.
type AuthManager struct {
	mu       sync.RWMutex
	secret   []byte
	tokenTTL time.Duration
	users    map[string]credential
	now      func() time.Time
}

type credential struct {
	id       string
	password string
	role     string
}

type posClaims struct {
	jwtlib.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration) (*AuthManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    make(map[string]credential),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// AddUser registers an account. password may be plain text or an existing
// bcrypt hash.
func (a *AuthManager) AddUser(username, password, role string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.ContainsAny(username, " \t\r\n") {
		return fmt.Errorf("invalid username %q", username)
	}
	if role != domain.RoleAdmin && role != domain.RoleCashier {
		return fmt.Errorf("unknown role %q", role)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is required")
	}
	if !isPasswordHash(password) {
		hashed, err := hashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		password = hashed
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.users[username]; exists {
		return fmt.Errorf("username %q already exists", username)
	}
	a.users[username] = credential{id: xid.New(userIDPrefix), password: password, role: role}
	return nil
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok || !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(username, cred, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || !xid.HasPrefix(claims.UserID, userIDPrefix) {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{ID: claims.UserID, Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username string, cred credential, expiresAt time.Time) (string, error) {
	claims := posClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		UserID: cred.id,
		Role:   cred.role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
