package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("user not found")

// User is a platform account. Cohort is a free-text segmentation tag used by
// tier eligibility rules; empty means the user belongs to no cohort.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Cohort    string    `json:"cohort,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides read access to users.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}
