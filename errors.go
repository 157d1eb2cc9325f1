package auth

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeTokenNameUnset       = "TOKEN_NAME_UNSET"
	textCodeExpirationTooShort   = "SESSION_EXPIRATION_TOO_SHORT"
	textCodePasswordMismatch     = "PASSWORD_MISMATCH"
	textCodePasswordTooShort     = "PASSWORD_TOO_SHORT"
	textCodePasswordInvalid      = "PASSWORD_INVALID"
	textCodeWrongPassword        = "WRONG_PASSWORD"
	textCodeOldPasswordInvalid   = "OLD_PASSWORD_INVALID"
	textCodeNotLoggedIn          = "NOT_LOGGED_IN"
	textCodeAlreadyLoggedIn      = "ALREADY_LOGGED_IN"
	textCodeUserNotFound         = "USER_NOT_FOUND"
	textCodeNotAuthorized        = "NOT_AUTHORIZED"
	textCodeSelfRegisterDisabled = "SELF_REGISTER_NOT_ALLOWED"
	textCodeDataIncomplete       = "DATA_INCOMPLETE"
	textCodeUsernameTooLong      = "USERNAME_TOO_LONG"
	textCodeUsernameWhitespace   = "USERNAME_WHITESPACE"
	textCodeUsernameReserved     = "USERNAME_RESERVED"
	textCodeUsernameExists       = "USERNAME_EXISTS"
	textCodeEmailInvalid         = "EMAIL_INVALID"
	textCodeEmailExists          = "EMAIL_EXISTS"
	textCodeSiteURLInvalid       = "SITE_URL_INVALID"
)

// Configuration errors.
var (
	// ErrTokenNameUnset is returned when a Resolver is built without a token name.
	ErrTokenNameUnset = goerrors.New("session token name is not configured", goerrors.CategoryValidation).
				WithTextCode(textCodeTokenNameUnset).
				WithCode(goerrors.CodeBadRequest)

	// ErrSessionExpirationTooShort is returned when the configured lifetime is below the floor.
	ErrSessionExpirationTooShort = goerrors.New("session expiration is below the minimum", goerrors.CategoryValidation).
					WithTextCode(textCodeExpirationTooShort).
					WithCode(goerrors.CodeBadRequest)
)

// Credential errors.
var (
	// ErrPasswordMismatch is returned when a password pair does not match.
	ErrPasswordMismatch = goerrors.New("passwords do not match", goerrors.CategoryValidation).
				WithTextCode(textCodePasswordMismatch).
				WithCode(goerrors.CodeBadRequest)

	// ErrPasswordTooShort is returned when a password has fewer than 4 characters after trimming.
	ErrPasswordTooShort = goerrors.New("password is too short", goerrors.CategoryValidation).
				WithTextCode(textCodePasswordTooShort).
				WithCode(goerrors.CodeBadRequest)

	// ErrWrongPassword is returned when login credentials do not verify.
	ErrWrongPassword = goerrors.New("wrong password", goerrors.CategoryAuth).
				WithTextCode(textCodeWrongPassword).
				WithCode(goerrors.CodeUnauthorized)

	// ErrOldPasswordInvalid is returned when the current password does not verify on change.
	ErrOldPasswordInvalid = goerrors.New("old password is invalid", goerrors.CategoryAuth).
				WithTextCode(textCodeOldPasswordInvalid).
				WithCode(goerrors.CodeUnauthorized)
)

// Session errors.
var (
	// ErrNotLoggedIn is returned when an operation requires an authenticated caller.
	ErrNotLoggedIn = goerrors.New("not logged in", goerrors.CategoryAuth).
			WithTextCode(textCodeNotLoggedIn).
			WithCode(goerrors.CodeUnauthorized)

	// ErrAlreadyLoggedIn is returned when the resolver already carries a session.
	ErrAlreadyLoggedIn = goerrors.New("already logged in", goerrors.CategoryConflict).
				WithTextCode(textCodeAlreadyLoggedIn).
				WithCode(goerrors.CodeConflict)

	// ErrUserNotFound is returned when the referenced account does not exist.
	ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
			WithTextCode(textCodeUserNotFound).
			WithCode(goerrors.CodeNotFound)
)

// Authorization errors.
var (
	// ErrNotAuthorized is returned when the policy denies the operation.
	ErrNotAuthorized = goerrors.New("not authorized", goerrors.CategoryAuthz).
				WithTextCode(textCodeNotAuthorized).
				WithCode(goerrors.CodeForbidden)

	// ErrSelfRegisterNotAllowed is returned when an unauthenticated Add is disabled.
	ErrSelfRegisterNotAllowed = goerrors.New("self registration is not allowed", goerrors.CategoryAuthz).
					WithTextCode(textCodeSelfRegisterDisabled).
					WithCode(goerrors.CodeForbidden)
)

// Input validation errors.
var (
	// ErrDataIncomplete is returned when required fields are missing.
	ErrDataIncomplete = goerrors.New("required fields are missing", goerrors.CategoryBadInput).
				WithTextCode(textCodeDataIncomplete).
				WithCode(goerrors.CodeBadRequest)

	// ErrUsernameTooLong is returned for usernames over 64 bytes.
	ErrUsernameTooLong = goerrors.New("username is longer than 64 bytes", goerrors.CategoryValidation).
				WithTextCode(textCodeUsernameTooLong).
				WithCode(goerrors.CodeBadRequest)

	// ErrUsernameWhitespace is returned for usernames containing whitespace.
	ErrUsernameWhitespace = goerrors.New("username contains whitespace", goerrors.CategoryValidation).
				WithTextCode(textCodeUsernameWhitespace).
				WithCode(goerrors.CodeBadRequest)

	// ErrUsernameReserved is returned for usernames with the federated "+" prefix.
	ErrUsernameReserved = goerrors.New("username prefix is reserved for federated accounts", goerrors.CategoryValidation).
				WithTextCode(textCodeUsernameReserved).
				WithCode(goerrors.CodeBadRequest)

	// ErrUsernameExists is returned when the username is already taken.
	ErrUsernameExists = goerrors.New("username already exists", goerrors.CategoryConflict).
				WithTextCode(textCodeUsernameExists).
				WithCode(goerrors.CodeConflict)

	// ErrEmailInvalid is returned for malformed email addresses.
	ErrEmailInvalid = goerrors.New("email address is invalid", goerrors.CategoryValidation).
			WithTextCode(textCodeEmailInvalid).
			WithCode(goerrors.CodeBadRequest)

	// ErrEmailExists is returned when the email is already registered.
	ErrEmailExists = goerrors.New("email address already registered", goerrors.CategoryConflict).
			WithTextCode(textCodeEmailExists).
			WithCode(goerrors.CodeConflict)

	// ErrSiteURLInvalid is returned for malformed profile site URLs.
	ErrSiteURLInvalid = goerrors.New("site is not a well-formed URL", goerrors.CategoryValidation).
				WithTextCode(textCodeSiteURLInvalid).
				WithCode(goerrors.CodeBadRequest)
)

// wrapPasswordInvalid surfaces the stable PASSWORD_INVALID code on password
// changes, keeping the sub-reason (mismatch vs too short) wrapped inside.
func wrapPasswordInvalid(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "new password is invalid").
		WithTextCode(textCodePasswordInvalid).
		WithCode(goerrors.CodeBadRequest)
}

func wrapStoreError(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
