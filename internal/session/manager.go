// Package session issues short-lived access tokens and long-lived rotating
// refresh tokens once the login correlation has confirmed a wallet identity.
// Every user carries an allow-list of valid refresh tokens so single devices
// and all-other-devices can be logged out server-side.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lnfunding/tipcards/internal/models"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = 5 * time.Minute
	DefaultRefreshTokenTTL = 365 * 24 * time.Hour
)

// Config holds the token settings.
type Config struct {
	JWTSecret       string        `yaml:"jwt-secret"`
	AccessTokenTTL  time.Duration `yaml:"access-token-ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh-token-ttl"`
}

// Manager issues, rotates and revokes session tokens.
type Manager struct {
	db  *gorm.DB
	cfg Config
}

// NewManager constructs a Manager.
func NewManager(db *gorm.DB, cfg Config) *Manager {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return &Manager{db: db, cfg: cfg}
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTokenTTL() time.Duration {
	return m.cfg.RefreshTokenTTL
}

// ParseAccess validates an access token against the configured secret.
func (m *Manager) ParseAccess(tokenString string) (*AccessClaims, error) {
	return ParseAccessToken(m.cfg.JWTSecret, tokenString)
}

// ParseRefresh validates a refresh token against the configured secret.
func (m *Manager) ParseRefresh(tokenString string) (*RefreshClaims, error) {
	return ParseRefreshToken(m.cfg.JWTSecret, tokenString)
}

// Session is an issued pair of tokens.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// GetOrCreateUser returns the user owning the given LNURL-auth linking key,
// creating the account on first login.
func (m *Manager) GetOrCreateUser(ctx context.Context, lnurlAuthKey string) (*models.User, error) {
	var user models.User
	errFind := m.db.WithContext(ctx).First(&user, "lnurl_auth_key = ?", lnurlAuthKey).Error
	if errFind == nil {
		return &user, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	user = models.User{
		ID:           uuid.NewString(),
		LnurlAuthKey: lnurlAuthKey,
		Created:      time.Now().Unix(),
	}
	if errCreate := m.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		return nil, errCreate
	}
	return &user, nil
}

// GetUser loads a user by id, returning nil when no record exists.
func (m *Manager) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if errFind := m.db.WithContext(ctx).First(&user, "id = ?", userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &user, nil
}

// SaveUser persists user changes.
func (m *Manager) SaveUser(ctx context.Context, user *models.User) error {
	return m.db.WithContext(ctx).Save(user).Error
}

// IssueSession mints an access/refresh token pair for the user and appends
// the refresh token to the allow-list. The allow-list grows with every
// login; it only shrinks on logout and rotation.
func (m *Manager) IssueSession(ctx context.Context, userID string) (*Session, error) {
	var session *Session
	errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; errFind != nil {
			return errFind
		}

		refreshToken, errRefresh := generateRefreshToken(m.cfg.JWTSecret, user.ID, m.cfg.RefreshTokenTTL)
		if errRefresh != nil {
			return errRefresh
		}
		accessToken, errAccess := generateAccessToken(m.cfg.JWTSecret, user.ID, user.LnurlAuthKey, m.cfg.AccessTokenTTL)
		if errAccess != nil {
			return errAccess
		}

		user.AllowedRefreshTokens = append(user.AllowedRefreshTokens, refreshToken)
		if errSave := tx.Save(&user).Error; errSave != nil {
			return errSave
		}
		session = &Session{UserID: user.ID, AccessToken: accessToken, RefreshToken: refreshToken}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return session, nil
}

// RefreshAccessToken validates a presented refresh token and rotates it: the
// presented token leaves the allow-list, a new refresh token joins it and a
// fresh access token is minted. Rotation is atomic with respect to the
// allow-list, so a replayed token observes ErrRefreshTokenDenied.
func (m *Manager) RefreshAccessToken(ctx context.Context, presented string) (*Session, error) {
	if presented == "" {
		return nil, ErrRefreshTokenMissing
	}
	claims, errParse := ParseRefreshToken(m.cfg.JWTSecret, presented)
	if errParse != nil {
		return nil, errParse
	}

	var session *Session
	errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", claims.UserID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrRefreshTokenDenied
			}
			return errFind
		}
		if !containsToken(user.AllowedRefreshTokens, presented) {
			return ErrRefreshTokenDenied
		}

		refreshToken, errRefresh := generateRefreshToken(m.cfg.JWTSecret, user.ID, m.cfg.RefreshTokenTTL)
		if errRefresh != nil {
			return errRefresh
		}
		accessToken, errAccess := generateAccessToken(m.cfg.JWTSecret, user.ID, user.LnurlAuthKey, m.cfg.AccessTokenTTL)
		if errAccess != nil {
			return errAccess
		}

		user.AllowedRefreshTokens = replaceToken(user.AllowedRefreshTokens, presented, refreshToken)
		if errSave := tx.Save(&user).Error; errSave != nil {
			return errSave
		}
		session = &Session{UserID: user.ID, AccessToken: accessToken, RefreshToken: refreshToken}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return session, nil
}

// Revoke removes a refresh token from the user's allow-list. Used by logout;
// revoking an unknown token is a no-op.
func (m *Manager) Revoke(ctx context.Context, userID, refreshToken string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil
			}
			return errFind
		}
		kept := make(datatypes.JSONSlice[string], 0, len(user.AllowedRefreshTokens))
		for _, token := range user.AllowedRefreshTokens {
			if token != refreshToken {
				kept = append(kept, token)
			}
		}
		user.AllowedRefreshTokens = kept
		return tx.Save(&user).Error
	})
}

// RevokeAllExcept removes every refresh token except the presented one,
// logging out all other devices.
func (m *Manager) RevokeAllExcept(ctx context.Context, userID, keepToken string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; errFind != nil {
			return errFind
		}
		kept := make(datatypes.JSONSlice[string], 0, 1)
		for _, token := range user.AllowedRefreshTokens {
			if token == keepToken {
				kept = append(kept, token)
			}
		}
		user.AllowedRefreshTokens = kept
		return tx.Save(&user).Error
	})
}

func containsToken(tokens []string, token string) bool {
	for _, current := range tokens {
		if current == token {
			return true
		}
	}
	return false
}

func replaceToken(tokens datatypes.JSONSlice[string], old, replacement string) datatypes.JSONSlice[string] {
	next := make(datatypes.JSONSlice[string], 0, len(tokens))
	for _, current := range tokens {
		if current != old {
			next = append(next, current)
		}
	}
	return append(next, replacement)
}
