package identity

import "context"

// Store describes persistence operations for identities.
type Store interface {
	Create(ctx context.Context, id *Identity) error
	FindByID(ctx context.Context, id string) (*Identity, error)
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Update(ctx context.Context, id *Identity) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	SoftDelete(ctx context.Context, id string) error
}
