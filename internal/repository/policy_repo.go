package repository

import (
	"context"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
)

type PolicyRepository struct {
	db DBTX
}

func NewPolicyRepository(db DBTX) *PolicyRepository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) GetByKey(ctx context.Context, key string) (*models.PolicyParameter, error) {
	query := `
		SELECT id, policy_key, policy_value, policy_type, description, created_at, updated_at
		FROM policy_parameters
		WHERE policy_key = $1
	`
	var param models.PolicyParameter
	err := r.db.QueryRow(ctx, query, key).Scan(
		&param.ID,
		&param.PolicyKey,
		&param.PolicyValue,
		&param.PolicyType,
		&param.Description,
		&param.CreatedAt,
		&param.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &param, nil
}

func (r *PolicyRepository) List(ctx context.Context) ([]models.PolicyParameter, error) {
	query := `
		SELECT id, policy_key, policy_value, policy_type, description, created_at, updated_at
		FROM policy_parameters
		ORDER BY policy_key ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	params := make([]models.PolicyParameter, 0)
	for rows.Next() {
		var param models.PolicyParameter
		if err := rows.Scan(
			&param.ID,
			&param.PolicyKey,
			&param.PolicyValue,
			&param.PolicyType,
			&param.Description,
			&param.CreatedAt,
			&param.UpdatedAt,
		); err != nil {
			return nil, err
		}
		params = append(params, param)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return params, nil
}

func (r *PolicyRepository) Upsert(
	ctx context.Context,
	key string,
	value string,
	policyType string,
	description *string,
) (*models.PolicyParameter, error) {
	query := `
		INSERT INTO policy_parameters (policy_key, policy_value, policy_type, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (policy_key) DO UPDATE
		SET policy_value = EXCLUDED.policy_value,
		    policy_type = EXCLUDED.policy_type,
		    description = COALESCE(EXCLUDED.description, policy_parameters.description),
		    updated_at = NOW()
		RETURNING id, policy_key, policy_value, policy_type, description, created_at, updated_at
	`
	var param models.PolicyParameter
	err := r.db.QueryRow(ctx, query, key, value, policyType, description).Scan(
		&param.ID,
		&param.PolicyKey,
		&param.PolicyValue,
		&param.PolicyType,
		&param.Description,
		&param.CreatedAt,
		&param.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &param, nil
}
