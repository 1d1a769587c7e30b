package rbac

import (
	"context"
	"fmt"

	"github.com/platinummonkey/meetup/pkg/auth"
)

// Predicate is one guard rule run before an operation body
type Predicate func(ctx context.Context, actor *auth.User) error

// Enforce runs predicates in order; the first failure short-circuits
func Enforce(ctx context.Context, actor *auth.User, predicates ...Predicate) error {
	for _, p := range predicates {
		if err := p(ctx, actor); err != nil {
			return err
		}
	}
	return nil
}

// RequireAuthenticated denies anonymous and inactive actors
func RequireAuthenticated() Predicate {
	return func(ctx context.Context, actor *auth.User) error {
		if actor == nil || !actor.IsActive {
			return ErrAuthenticationRequired
		}
		return nil
	}
}

// RequireCapability allows the actor if it holds capability on the location,
// or unscoped when locationID is nil
func RequireCapability(checker Checker, capability Capability, locationID *int64) Predicate {
	return func(ctx context.Context, actor *auth.User) error {
		if actor == nil || !actor.IsActive {
			return ErrAuthenticationRequired
		}

		result, err := checker.CheckPermission(ctx, PermissionCheck{
			Actor:      actor,
			Capability: capability,
			LocationID: locationID,
		})
		if err != nil {
			return err
		}
		if !result.Allowed {
			return fmt.Errorf("%w: %s", ErrForbidden, result.Reason)
		}
		return nil
	}
}

// RequireUser allows only the given user, such as an object's creator
func RequireUser(userID int64) Predicate {
	return func(ctx context.Context, actor *auth.User) error {
		if actor == nil || !actor.IsActive {
			return ErrAuthenticationRequired
		}
		if actor.ID != userID {
			return fmt.Errorf("%w: not the owner", ErrForbidden)
		}
		return nil
	}
}

// AnyOf passes when any predicate passes. When all fail it returns the
// first failure.
func AnyOf(predicates ...Predicate) Predicate {
	return func(ctx context.Context, actor *auth.User) error {
		var first error
		for _, p := range predicates {
			err := p(ctx, actor)
			if err == nil {
				return nil
			}
			if first == nil {
				first = err
			}
		}
		if first == nil {
			return ErrForbidden
		}
		return first
	}
}

// LocationScope returns a pointer suitable for PermissionCheck.LocationID
func LocationScope(locationID int64) *int64 {
	return &locationID
}
