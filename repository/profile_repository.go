package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tlord101/VanTutor-sub000/models"

	"gorm.io/gorm"
)

// ProfileRepository defines the interface for interacting with user profile data.
// Ledger fields (XP, streak, last activity) are written only by the ledger
// service; this repository handles account-level reads and creation.
type ProfileRepository interface {
	CreateProfile(profile *models.UserProfile) error
	GetProfileByID(userID string) (*models.UserProfile, error)
	GetProfileByEmail(email string) (*models.UserProfile, error)
	GetProfilesWithLastActivityOn(day time.Time) ([]*models.UserProfile, error)
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new instance of ProfileRepository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// CreateProfile creates a new user profile. Ledger counters start at zero.
func (r *profileRepository) CreateProfile(profile *models.UserProfile) error {
	if profile == nil {
		log.Printf("ERROR: [ProfileRepository] CreateProfile: profile cannot be nil")
		return errors.New("profile cannot be nil")
	}
	if profile.UserID == "" {
		log.Printf("ERROR: [ProfileRepository] CreateProfile: profile must have a UserID")
		return errors.New("profile must have a UserID")
	}
	err := r.db.Create(profile).Error
	if err != nil {
		log.Printf("ERROR: [ProfileRepository] Failed to create profile for userID %s: %v", profile.UserID, err)
		return fmt.Errorf("failed to create profile for userID %s: %w", profile.UserID, err)
	}
	log.Printf("INFO: [ProfileRepository] Successfully created profile for userID %s.", profile.UserID)
	return nil
}

// GetProfileByID retrieves a profile by user ID. Returns (nil, nil) if not found.
func (r *profileRepository) GetProfileByID(userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.First(&profile, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [ProfileRepository] Failed to retrieve profile for userID %s: %v", userID, err)
		return nil, fmt.Errorf("failed to retrieve profile for userID %s: %w", userID, err)
	}
	return &profile, nil
}

// GetProfileByEmail retrieves a profile by email. Returns (nil, nil) if not found.
func (r *profileRepository) GetProfileByEmail(email string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.db.First(&profile, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		log.Printf("ERROR: [ProfileRepository] Failed to retrieve profile for email %s: %v", email, err)
		return nil, fmt.Errorf("failed to retrieve profile for email %s: %w", email, err)
	}
	return &profile, nil
}

// GetProfilesWithLastActivityOn retrieves profiles whose last activity date
// falls on the given calendar day (UTC). Used by the streak reminder sweep.
func (r *profileRepository) GetProfilesWithLastActivityOn(day time.Time) ([]*models.UserProfile, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var profiles []*models.UserProfile
	err := r.db.Where("last_activity_date >= ? AND last_activity_date < ?", dayStart, dayEnd).Find(&profiles).Error
	if err != nil {
		log.Printf("ERROR: [ProfileRepository] Failed to retrieve profiles with last activity on %s: %v", dayStart.Format("2006-01-02"), err)
		return nil, fmt.Errorf("failed to retrieve profiles with last activity on %s: %w", dayStart.Format("2006-01-02"), err)
	}
	return profiles, nil
}
