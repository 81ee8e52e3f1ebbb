package membership

import "context"

// RegisterInput carries the raw registration form.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Role       string
	BloodGroup string
}

// Service defines the interface for the identity registry.
type Service interface {
	RegisterPerson(ctx context.Context, in RegisterInput) (*Person, error)
	Authenticate(ctx context.Context, email, password string) (*Person, error)
	GetPerson(ctx context.Context, email string) (*Person, error)
	ListDonors(ctx context.Context) ([]*Person, error)
}
