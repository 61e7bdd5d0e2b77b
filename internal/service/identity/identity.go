package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yuxzhang97/storefront/internal/errs"
	"github.com/yuxzhang97/storefront/internal/googleauth"
	"github.com/yuxzhang97/storefront/internal/hash"
	"github.com/yuxzhang97/storefront/internal/models"
	"github.com/yuxzhang97/storefront/internal/service/token"
)

// ErrBadCredentials is returned for a failed password login. It never says
// which of the two inputs was wrong.
var ErrBadCredentials = errors.New("invalid email or password")

const (
	MessageSignedIn = "signed in"
	MessageSignedUp = "signed up"
)

// AuthPayload carries the issued credential pair. It is only returned on
// success, failures travel on the error channel.
type AuthPayload struct {
	UserID       uint   `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Message      string `json:"message"`
}

// Service links external OAuth identities to local users and issues
// session credentials.
type Service struct {
	DB     *gorm.DB
	Google *googleauth.Client
	Tokens *token.Service
}

func NewService(db *gorm.DB, google *googleauth.Client, tokens *token.Service) *Service {
	return &Service{DB: db, Google: google, Tokens: tokens}
}

// NormalizeEmail is the canonical form used for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUpGoogle exchanges the OAuth access token for a profile, resolves or
// creates the local user by normalized email and issues a fresh credential
// pair. The payload message says whether the user already existed.
func (s *Service) SignUpGoogle(ctx context.Context, accessToken string) (*AuthPayload, error) {
	profile, err := s.Google.Profile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	email := NormalizeEmail(profile.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: provider returned empty email", errs.ErrUnknown)
	}

	user, created, err := s.findOrCreate(ctx, email, profile.GivenName, profile.FamilyName)
	if err != nil {
		return nil, err
	}

	access, refresh, err := s.Tokens.IssuePair(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue credentials: %w", err)
	}

	message := MessageSignedIn
	if created {
		message = MessageSignedUp
	}
	return &AuthPayload{
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		Message:      message,
	}, nil
}

// Register creates a user with a password. Duplicate emails are rejected.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", errs.ErrInvalidArgument)
	}

	var existing models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("%w: user already exists", errs.ErrInvalidState)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	passwordHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
		Role:         "user",
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Login verifies a password and issues a credential pair.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthPayload, error) {
	email = NormalizeEmail(email)

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user.PasswordHash == "" || !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrBadCredentials
	}

	access, refresh, err := s.Tokens.IssuePair(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue credentials: %w", err)
	}
	return &AuthPayload{
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		Message:      MessageSignedIn,
	}, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

// findOrCreate reuses an existing user unchanged, profile fields are not
// synced on repeat sign-ins. A create that loses the race to a concurrent
// sign-in falls back to the winner's row.
func (s *Service) findOrCreate(ctx context.Context, email, firstName, lastName string) (*models.User, bool, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}

	user = models.User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      "user",
	}
	if createErr := s.DB.WithContext(ctx).Create(&user).Error; createErr != nil {
		if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
			return nil, false, fmt.Errorf("create user: %w", createErr)
		}
		return &user, false, nil
	}
	return &user, true, nil
}
