package tenant

import (
	"fmt"
	"strings"
)

// Tenant represents a business tenant in the system
type Tenant struct {
	ID     int64
	Name   string
	Status Status
}

// Status represents tenant status
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// APIKey represents a tenant API key
type APIKey struct {
	ID       int64
	TenantID int64
	Name     string
	KeyHash  string
	IsActive bool
}

// New creates a new tenant with validation
func New(name string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	if len(name) < 2 || len(name) > 100 {
		return nil, fmt.Errorf("tenant name must be between 2 and 100 characters")
	}

	return &Tenant{
		Name:   name,
		Status: StatusActive,
	}, nil
}

// IsActive reports whether the tenant may call the API.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}
