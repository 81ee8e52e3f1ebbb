package membership

import (
	"fmt"
	"strings"
	"time"

	"bloodlink/internal/compatibility"
	"bloodlink/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// Role is fixed at registration.
type Role string

const (
	RoleDonor     Role = "Donor"
	RoleRequestor Role = "Requestor"
)

// ParseRole accepts any casing of "donor" or "requestor".
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "donor":
		return RoleDonor, nil
	case "requestor":
		return RoleRequestor, nil
	default:
		return "", fmt.Errorf("%w: invalid role %q", sentinel.ErrValidation, raw)
	}
}

// Person is a registered donor or requestor. Email is the primary key.
type Person struct {
	ID           uuid.UUID                `json:"id"`
	Email        string                   `json:"email"`
	Name         string                   `json:"name"`
	Role         Role                     `json:"role"`
	BloodGroup   compatibility.BloodGroup `json:"blood_group,omitempty"`
	RegisteredAt time.Time                `json:"registered_at"`
	Version      int                      `json:"version"`
}

// DonorBloodGroup lets persons be filtered by the compatibility engine.
func (p *Person) DonorBloodGroup() string {
	return string(p.BloodGroup)
}

// Credential represents a person's login credentials.
type Credential struct {
	PersonID     uuid.UUID `json:"person_id"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PersonRegisteredEvent is journaled when a new person registers.
type PersonRegisteredEvent struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	BloodGroup string    `json:"blood_group,omitempty"`
}
