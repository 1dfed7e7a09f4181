package services

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"compliance_flow_app_go/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10
	// MinPasswordLength applies to passwords set through CreateUser
	MinPasswordLength = 12
	// DefaultTokenTTL is the lifetime of tokens minted by IssueCallerToken
	DefaultTokenTTL = 12 * time.Hour
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword verifies a password against a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePassword checks length and that upper case, lower case, digit and
// symbol classes are all present.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ValidationError("password must be at least %d characters long", MinPasswordLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return ValidationError("password must contain at least one uppercase letter")
	case !hasLower:
		return ValidationError("password must contain at least one lowercase letter")
	case !hasNumber:
		return ValidationError("password must contain at least one number")
	case !hasSpecial:
		return ValidationError("password must contain at least one special character")
	}
	return nil
}

// CreateUserInput is the input of CreateUser
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Roles    []string
}

// CreateUser stores an active user with a hashed password and attaches roles
// in one transaction.
func CreateUser(db *gorm.DB, in CreateUserInput) (*models.User, error) {
	name := SanitizeText(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return nil, ValidationError("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ValidationError("invalid email %q", in.Email)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, InternalError("failed to hash password", err)
	}

	user := &models.User{Name: name, Email: email, Password: hash, IsActive: true}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ConflictError("user with email %s already exists", email)
			}
			return InternalError("failed to create user", err)
		}
		if len(in.Roles) == 0 {
			return nil
		}
		return AssignRoles(tx, user, in.Roles...)
	})
	if err != nil {
		return nil, asAppError(err, "failed to create user")
	}
	return user, nil
}

// CallerClaims are the claims of a caller bearer token. The subject is the
// user ID; roles are always resolved from the database.
type CallerClaims struct {
	jwt.RegisteredClaims
}

// IssueCallerToken signs an HS256 token for userID. The external auth
// service mints the same shape; this is used by the operator CLI and tests.
func IssueCallerToken(secret, userID string, ttl time.Duration, now time.Time) (string, error) {
	claims := CallerClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseCallerToken verifies an HS256 token and returns its subject
func ParseCallerToken(secret, raw string) (string, error) {
	var claims CallerClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token: missing subject")
	}
	return claims.Subject, nil
}
