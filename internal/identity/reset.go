package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"analyzeit/internal/shared/telemetry"
	"analyzeit/internal/users"
)

// ResetTTL bounds how long a password reset link is valid.
const ResetTTL = time.Hour

// ResetSender delivers password reset links.
type ResetSender interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// ResetSenderFunc adapts a function to ResetSender.
type ResetSenderFunc func(ctx context.Context, email, link string) error

func (f ResetSenderFunc) SendPasswordReset(ctx context.Context, email, link string) error {
	return f(ctx, email, link)
}

// SendPasswordReset stores a one-time code for the account and hands the
// reset link to the configured sender. Without a sender the link is logged.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email = users.NormalizeEmail(email)
	if err := s.checkEmail(email); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return newError(CodeUserNotFound, nil)
		}
		return newError(CodeInternal, err)
	}
	if user.Disabled {
		return newError(CodeUserDisabled, nil)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return newError(CodeInternal, err)
	}
	code := user.ID + "." + hex.EncodeToString(secret)
	exp := s.now().UTC().Add(ResetTTL)
	user.ResetTokenHash = hashCode(code)
	user.ResetExpiresAt = &exp
	if err := s.users.Update(ctx, user); err != nil {
		return newError(CodeInternal, err)
	}

	link := s.publicURL + "/reset-password?oobCode=" + url.QueryEscape(code)
	if s.reset == nil {
		telemetry.Info("identity.password_reset_link", map[string]any{
			"user_id": user.ID,
			"link":    link,
		})
		return nil
	}
	if err := s.reset.SendPasswordReset(ctx, email, link); err != nil {
		return newError(CodeInternal, err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a code from a reset link and
// revokes the tokens issued before it.
func (s *Service) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	idx := strings.LastIndex(code, ".")
	if idx <= 0 {
		return newError(CodeInvalidActionCode, nil)
	}
	if len(newPassword) < MinPasswordLength {
		return newError(CodeWeakPassword, nil)
	}
	user, err := s.users.GetByID(ctx, code[:idx])
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return newError(CodeInvalidActionCode, nil)
		}
		return newError(CodeInternal, err)
	}
	if user.ResetTokenHash == "" || user.ResetExpiresAt == nil || s.now().After(*user.ResetExpiresAt) {
		return newError(CodeInvalidActionCode, nil)
	}
	if subtle.ConstantTimeCompare([]byte(user.ResetTokenHash), []byte(hashCode(code))) != 1 {
		return newError(CodeInvalidActionCode, nil)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return newError(CodeInternal, err)
	}
	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetExpiresAt = nil
	user.TokensValidAfter = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return newError(CodeInternal, err)
	}
	s.emit(user.ID, Credential{User: user})
	return nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
