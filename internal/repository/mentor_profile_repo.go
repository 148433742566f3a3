package repository

import (
	"context"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
)

type MentorProfileRepository struct {
	db DBTX
}

func NewMentorProfileRepository(db DBTX) *MentorProfileRepository {
	return &MentorProfileRepository{db: db}
}

func (r *MentorProfileRepository) CreateEmpty(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO mentor_profiles (user_id, verification_status)
		VALUES ($1, 'pending')
	`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *MentorProfileRepository) GetByUserID(ctx context.Context, userID int64) (*models.MentorProfile, error) {
	query := `
		SELECT id, user_id, verification_status, hourly_rate, headline, onboarding_complete, created_at, updated_at
		FROM mentor_profiles
		WHERE user_id = $1
	`
	var profile models.MentorProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.VerificationStatus,
		&profile.HourlyRate,
		&profile.Headline,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *MentorProfileRepository) UpdateVerificationStatus(
	ctx context.Context,
	userID int64,
	status string,
) (*models.MentorProfile, error) {
	query := `
		UPDATE mentor_profiles
		SET verification_status = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING id, user_id, verification_status, hourly_rate, headline, onboarding_complete, created_at, updated_at
	`
	var profile models.MentorProfile
	err := r.db.QueryRow(ctx, query, userID, status).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.VerificationStatus,
		&profile.HourlyRate,
		&profile.Headline,
		&profile.OnboardingComplete,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
