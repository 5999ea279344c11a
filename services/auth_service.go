package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tlord101/VanTutor-sub000/config"
	"github.com/tlord101/VanTutor-sub000/models"
	"github.com/tlord101/VanTutor-sub000/repository"
	"github.com/tlord101/VanTutor-sub000/utils"
)

var (
	// ErrEmailTaken is returned when registering with an email that already
	// has an account.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrInvalidCredentials is returned for a failed login. It deliberately
	// does not distinguish unknown email from wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AuthService handles account registration and login. A successful login
// returns a signed bearer token carrying the user ID as its subject.
type AuthService interface {
	Register(email, password, displayName string) (*models.UserProfile, error)
	Login(email, password string) (token string, profile *models.UserProfile, err error)
}

type authService struct {
	profileRepo repository.ProfileRepository
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(profileRepo repository.ProfileRepository) AuthService {
	return &authService{profileRepo: profileRepo}
}

// Register creates a new account with a zeroed ledger on the free tier.
func (s *authService) Register(email, password, displayName string) (*models.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("a valid email address is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	existing, err := s.profileRepo.GetProfileByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing account: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &models.UserProfile{
		UserID:       utils.GenerateID(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		PlanTier:     models.PlanTierFree,
	}
	if err := s.profileRepo.CreateProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Printf("INFO: [AuthService] Registered new user %s.", profile.UserID)
	return profile, nil
}

// Login verifies the credentials and issues a signed token.
func (s *authService) Login(email, password string) (string, *models.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	profile, err := s.profileRepo.GetProfileByEmail(email)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := issueToken(profile.UserID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, profile, nil
}

func issueToken(userID string) (string, error) {
	ttl := time.Duration(config.AppConfig.Auth.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.Auth.JWTSecret))
}
