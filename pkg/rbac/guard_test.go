package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/meetup/pkg/auth"
)

type staticChecker struct {
	allowed map[Capability]bool
	err     error
	calls   int
}

func (c *staticChecker) CheckPermission(ctx context.Context, check PermissionCheck) (*PermissionCheckResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &PermissionCheckResult{Allowed: c.allowed[check.Capability], Reason: "static"}, nil
}

func (c *staticChecker) InvalidateCache(ctx context.Context, userID int64) error {
	return nil
}

func TestEnforce(t *testing.T) {
	ctx := context.Background()
	actor := &auth.User{ID: 7, IsActive: true}
	checker := &staticChecker{allowed: map[Capability]bool{CapAddMeetup: true}}
	loc := LocationScope(1)

	t.Run("all pass", func(t *testing.T) {
		err := Enforce(ctx, actor, RequireAuthenticated(), RequireCapability(checker, CapAddMeetup, loc))
		assert.NoError(t, err)
	})

	t.Run("anonymous", func(t *testing.T) {
		err := Enforce(ctx, nil, RequireAuthenticated(), RequireCapability(checker, CapAddMeetup, loc))
		assert.ErrorIs(t, err, ErrAuthenticationRequired)
		assert.ErrorIs(t, err, ErrAccessDenied)
		assert.NotErrorIs(t, err, ErrForbidden)
	})

	t.Run("missing capability", func(t *testing.T) {
		err := Enforce(ctx, actor, RequireAuthenticated(), RequireCapability(checker, CapDeleteMeetup, loc))
		assert.ErrorIs(t, err, ErrForbidden)
		assert.ErrorIs(t, err, ErrAccessDenied)
		assert.NotErrorIs(t, err, ErrAuthenticationRequired)
	})

	t.Run("first failure short-circuits", func(t *testing.T) {
		c := &staticChecker{}
		err := Enforce(ctx, nil, RequireAuthenticated(), RequireCapability(c, CapAddMeetup, loc))
		require.Error(t, err)
		assert.Zero(t, c.calls)
	})

	t.Run("checker error propagates", func(t *testing.T) {
		boom := errors.New("boom")
		err := Enforce(ctx, actor, RequireCapability(&staticChecker{err: boom}, CapAddMeetup, loc))
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrAccessDenied)
	})
}

func TestAnyOf(t *testing.T) {
	ctx := context.Background()
	creator := &auth.User{ID: 7, IsActive: true}
	stranger := &auth.User{ID: 8, IsActive: true}
	editor := &staticChecker{allowed: map[Capability]bool{CapChangeMeetup: true}}
	nobody := &staticChecker{}
	loc := LocationScope(1)

	assert.NoError(t, Enforce(ctx, creator, AnyOf(RequireUser(7), RequireCapability(nobody, CapChangeMeetup, loc))))
	assert.NoError(t, Enforce(ctx, stranger, AnyOf(RequireUser(7), RequireCapability(editor, CapChangeMeetup, loc))))
	assert.ErrorIs(t, Enforce(ctx, stranger, AnyOf(RequireUser(7), RequireCapability(nobody, CapChangeMeetup, loc))), ErrForbidden)
	assert.ErrorIs(t, Enforce(ctx, nil, AnyOf(RequireUser(7))), ErrAuthenticationRequired)
	assert.ErrorIs(t, Enforce(ctx, creator, AnyOf()), ErrForbidden)
}
