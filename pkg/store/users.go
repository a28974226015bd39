package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"reliclog/models"
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// CreateUser hashes password with bcrypt and stores a new user.
func (s *Store) CreateUser(ctx context.Context, username, password, role string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, errors.New("username required")
	}
	if len(password) < MinPasswordLen {
		return models.User{}, fmt.Errorf("password too short (min %d)", MinPasswordLen)
	}
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdministrator {
		return models.User{}, fmt.Errorf("unknown role %q", role)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{Username: username, HashedPassword: hashed, Role: role}
	if err := s.with(ctx).Create(&u).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}
	return u, nil
}

// SetPassword replaces the password of username and revokes its sessions.
func (s *Store) SetPassword(ctx context.Context, username, password string) error {
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password too short (min %d)", MinPasswordLen)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.with(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Where("username = ?", strings.TrimSpace(username)).First(&u).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&u).Update("hashed_password", hashed).Error; err != nil {
			return err
		}
		return tx.Model(&models.Session{}).
			Where("user_id = ? AND revoked_at IS NULL", u.ID).
			Update("revoked_at", time.Now()).Error
	})
}

// Authenticate checks a username and password.
func (s *Store) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	var u models.User
	if err := s.with(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error; err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.HashedPassword, []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UserByName looks a user up by username.
func (s *Store) UserByName(ctx context.Context, username string) (models.User, error) {
	var u models.User
	if err := s.with(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return models.User{}, notFound(err)
	}
	return u, nil
}

// EnsureAdmin creates the administrator account when it does not exist yet.
// Nothing happens without a password.
func (s *Store) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	var n int64
	if err := s.with(ctx).Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := s.CreateUser(ctx, username, password, models.RoleAdministrator)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	return err
}

// HashToken returns the stored form of a raw refresh token.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

func newRawToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateSession opens a refresh session for userID and returns the raw token.
func (s *Store) CreateSession(ctx context.Context, userID uint, ttl time.Duration) (string, error) {
	raw, err := newRawToken()
	if err != nil {
		return "", err
	}
	sess := models.Session{UserID: userID, TokenHash: HashToken(raw), ExpiresAt: time.Now().Add(ttl)}
	if err := s.with(ctx).Create(&sess).Error; err != nil {
		return "", err
	}
	return raw, nil
}

// RotateSession revokes the session behind raw and opens a new one for the
// same user.
func (s *Store) RotateSession(ctx context.Context, raw string, ttl time.Duration) (models.User, string, error) {
	var (
		user   models.User
		newRaw string
	)
	err := s.with(ctx).Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := tx.Where("token_hash = ?", HashToken(raw)).First(&sess).Error; err != nil {
			return ErrSessionInvalid
		}
		now := time.Now()
		if !sess.Active(now) {
			return ErrSessionInvalid
		}
		if err := tx.First(&user, sess.UserID).Error; err != nil {
			return ErrSessionInvalid
		}
		res := tx.Model(&models.Session{}).Where("id = ? AND revoked_at IS NULL", sess.ID).Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionInvalid
		}
		var err error
		if newRaw, err = newRawToken(); err != nil {
			return err
		}
		return tx.Create(&models.Session{UserID: user.ID, TokenHash: HashToken(newRaw), ExpiresAt: now.Add(ttl)}).Error
	})
	if err != nil {
		return models.User{}, "", err
	}
	return user, newRaw, nil
}

// RevokeSession ends the session behind raw.
func (s *Store) RevokeSession(ctx context.Context, raw string) error {
	res := s.with(ctx).Model(&models.Session{}).
		Where("token_hash = ? AND revoked_at IS NULL", HashToken(raw)).
		Update("revoked_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
