package auth

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

const (
	// SecretLength is the default length of derived secrets.
	SecretLength = 64
	// SaltLength is the length of password salts.
	SaltLength = 16

	// maxKeyBytes bounds the digest-input size: longer keys are truncated
	// before feeding the MAC so derived secrets stay reproducible no matter
	// where the key came from.
	maxKeyBytes = 16

	minPasswordLength = 4
)

// DeriveSecret computes a keyed secret over data. An empty key means "mint a
// fresh unpredictable one" from the clock and a random UUID, which makes the
// result single-use (tokens). A non-empty key makes the result reproducible
// (password hashes). The digest is encoded URL-safe-ish and truncated to length.
func DeriveSecret(data, key string, length int) string {
	if key == "" {
		key = uuid.NewString() + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	if len(key) > maxKeyBytes {
		key = key[:maxKeyBytes]
	}

	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(data))

	out := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	out = strings.NewReplacer("=", "", "/", "", "+", "").Replace(out)

	if length > 0 && len(out) > length {
		out = out[:length]
	}
	return out
}

// NewSalt returns a fresh password salt.
func NewSalt() string {
	return DeriveSecret(uuid.NewString(), "", SaltLength)
}

// HashPassword derives the stored credential hash for a user. The username is
// mixed into the digest input so equal passwords on different accounts never
// share a hash even under salt reuse.
func HashPassword(uname, upass, usalt string) string {
	if len(usalt) > SaltLength {
		usalt = usalt[:SaltLength]
	}
	return DeriveSecret(upass+uname, usalt, SecretLength)
}

// VerifyPasswordPair validates a new password and its confirmation.
func VerifyPasswordPair(pass1, pass2 string) error {
	if subtle.ConstantTimeCompare([]byte(pass1), []byte(pass2)) != 1 {
		return ErrPasswordMismatch
	}
	if len(strings.TrimSpace(pass1)) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// VerifyEmail checks the address format. No deliverability probing.
func VerifyEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return ErrEmailInvalid
	}
	return nil
}

// VerifySiteURL checks that a profile site is a well-formed URL.
func VerifySiteURL(site string) error {
	if err := validation.Validate(site, validation.Required, is.URL); err != nil {
		return ErrSiteURLInvalid
	}
	return nil
}

func secretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
