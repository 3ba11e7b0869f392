package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const DefaultPlanID = "free"

// Profile is the per-user plan pointer plus the account flags the back-office
// manages. IDs come from the identity provider (UUID strings).
type Profile struct {
	ID          string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	Email       string     `gorm:"type:varchar(191);index" json:"email"`
	FullName    string     `gorm:"type:varchar(191)" json:"full_name"`
	PlanID      string     `gorm:"type:varchar(50);not null;default:'free';index" json:"plan_id"`
	BannedUntil *time.Time `gorm:"type:timestamp;default:null" json:"banned_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsBanned reports whether the profile is banned at the given instant.
func (p *Profile) IsBanned(now time.Time) bool {
	return p != nil && p.BannedUntil != nil && p.BannedUntil.After(now)
}

// EffectivePlanID never returns an empty plan id.
func (p *Profile) EffectivePlanID() string {
	if p == nil || p.PlanID == "" {
		return DefaultPlanID
	}
	return p.PlanID
}

// GetOrCreateProfile returns the existing profile or creates one on the free tier.
func GetOrCreateProfile(db *gorm.DB, id, email string) (*Profile, error) {
	var p Profile
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p = Profile{ID: id, Email: email, PlanID: DefaultPlanID}
			if err := db.Create(&p).Error; err != nil {
				return nil, err
			}
			return &p, nil
		}
		return nil, err
	}
	return &p, nil
}
