package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"library-lending/internal/model"
)

type userByEmail interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
}

// PrincipalResolver turns a verified token subject into a principal. Concurrent lookups of the
// same subject share one store round trip; nothing is kept once the lookup returns.
type PrincipalResolver struct {
	users   userByEmail
	timeout time.Duration
	group   singleflight.Group
}

func NewPrincipalResolver(users userByEmail, timeout time.Duration) *PrincipalResolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PrincipalResolver{users: users, timeout: timeout}
}

func (r *PrincipalResolver) Resolve(ctx context.Context, subject string) (model.Principal, error) {
	result, err, _ := r.group.Do(subject, func() (any, error) {
		// Shared by every waiter, so detach from the first caller's cancellation.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		user, err := r.users.FindByEmail(lookupCtx, subject)
		if err != nil {
			return nil, err
		}
		return PrincipalFromUser(user), nil
	})
	if err != nil {
		return model.Principal{}, fmt.Errorf("resolve principal %q: %w", subject, err)
	}

	return result.(model.Principal), nil
}

func PrincipalFromUser(user model.User) model.Principal {
	return model.Principal{
		UserID:     user.ID,
		Identifier: user.Email,
		Roles:      []model.Role{user.Role},
	}
}
