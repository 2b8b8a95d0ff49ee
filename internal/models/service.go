package models

import "time"

// Service is a catalog entry for an on-demand service vertical.
type Service struct {
	ID          int64     `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Vertical    string    `yaml:"vertical" json:"vertical"`
	BaseCharge  float64   `yaml:"base_charge" json:"base_charge"`
	SortOrder   int64     `yaml:"sort_order" json:"sort_order"`
	IsActive    bool      `yaml:"is_active" json:"is_active"`
	CreatedAt   time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at" json:"updated_at"`
}
