package models

import "time"

const (
	PolicyTypeInteger = "integer"
	PolicyTypeBoolean = "boolean"
	PolicyTypeString  = "string"
	PolicyTypeJSON    = "json"
)

func ValidPolicyType(policyType string) bool {
	switch policyType {
	case PolicyTypeInteger, PolicyTypeBoolean, PolicyTypeString, PolicyTypeJSON:
		return true
	default:
		return false
	}
}

type PolicyParameter struct {
	ID          int64     `json:"id"`
	PolicyKey   string    `json:"policy_key"`
	PolicyValue string    `json:"policy_value"`
	PolicyType  string    `json:"policy_type"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
