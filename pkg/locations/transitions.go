package locations

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/meetup/pkg/audit"
	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/notifications"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

// RequestJoin files the actor's request to join a location. Repeating it,
// or asking while already a member, is a warning and changes nothing.
func (s *Service) RequestJoin(ctx context.Context, actor *auth.User, slug string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "request_join", audit.EventTypeJoinRequested, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, ""); err != nil {
		return nil, err
	}
	op.target = actor
	loc := op.loc

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockLocation(ctx, tx, loc.ID); err != nil {
			return err
		}

		state, err := stateOf(ctx, tx, loc.ID, actor.ID)
		if err != nil {
			return err
		}
		switch state {
		case StatePending:
			res = outcome.Warning("You have already requested to join meetup location %s.", loc.Name)
			return nil
		case StateMember, StateOrganizer:
			res = outcome.Warning("You are already a member of meetup location %s.", loc.Name)
			return nil
		}

		created, err := insertJoinRequest(ctx, tx, loc.ID, actor.ID, s.now())
		if err != nil {
			return err
		}
		if !created {
			res = outcome.Warning("You have already requested to join meetup location %s.", loc.Name)
			return nil
		}
		if err := s.groups.AddToGroup(ctx, tx, loc.Groups().Applicants, actor.ID); err != nil {
			return err
		}

		res = outcome.Success("Your request to join meetup location %s has been sent.", loc.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Changed {
		s.notices.Emit(ctx, s.notice(op, notifications.NoticeNewJoinRequest, s.organizerIDs(ctx, op),
			"%s has requested to join meetup location %s.", actor.DisplayName(), loc.Name))
	}
	return res, nil
}

// WithdrawJoin cancels the actor's own pending request
func (s *Service) WithdrawJoin(ctx context.Context, actor *auth.User, slug string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "withdraw_join", audit.EventTypeJoinWithdrawn, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, rbac.CapWithdrawJoinRequest); err != nil {
		return nil, err
	}
	op.target = actor
	loc := op.loc

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockLocation(ctx, tx, loc.ID); err != nil {
			return err
		}

		existed, err := deleteJoinRequest(ctx, tx, loc.ID, actor.ID)
		if err != nil {
			return err
		}
		if !existed {
			return outcome.NotFound("join request", actor.Username)
		}
		return s.groups.RemoveFromGroup(ctx, tx, loc.Groups().Applicants, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	return outcome.Success("Your request to join meetup location %s has been withdrawn.", loc.Name), nil
}

// ApproveJoin turns a pending request into membership. A request that is
// no longer pending, including one just approved or rejected concurrently,
// is reported as not found.
func (s *Service) ApproveJoin(ctx context.Context, actor *auth.User, slug, username string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "approve_join", audit.EventTypeJoinApproved, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, rbac.CapApproveJoinRequest); err != nil {
		return nil, err
	}
	if err := s.resolveTarget(ctx, op, username); err != nil {
		return nil, err
	}
	loc, target := op.loc, op.target

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockLocation(ctx, tx, loc.ID); err != nil {
			return err
		}

		existed, err := deleteJoinRequest(ctx, tx, loc.ID, target.ID)
		if err != nil {
			return err
		}
		if !existed {
			return outcome.NotFound("join request", username)
		}

		if err := insertMember(ctx, tx, loc.ID, target.ID, s.now()); err != nil {
			return err
		}
		groups := loc.Groups()
		if err := s.groups.RemoveFromGroup(ctx, tx, groups.Applicants, target.ID); err != nil {
			return err
		}
		return s.groups.AddToGroup(ctx, tx, groups.Members, target.ID)
	})
	if err != nil {
		return nil, err
	}

	s.notices.Emit(ctx, s.notice(op, notifications.NoticeJoinedLocation, []int64{target.ID},
		"You have joined meetup location %s.", loc.Name))
	return outcome.Success("%s has been added to the members of meetup location %s.", target.Username, loc.Name), nil
}

// RejectJoin discards a pending request
func (s *Service) RejectJoin(ctx context.Context, actor *auth.User, slug, username string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "reject_join", audit.EventTypeJoinRejected, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, rbac.CapRejectJoinRequest); err != nil {
		return nil, err
	}
	if err := s.resolveTarget(ctx, op, username); err != nil {
		return nil, err
	}
	loc, target := op.loc, op.target

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockLocation(ctx, tx, loc.ID); err != nil {
			return err
		}

		existed, err := deleteJoinRequest(ctx, tx, loc.ID, target.ID)
		if err != nil {
			return err
		}
		if !existed {
			return outcome.NotFound("join request", username)
		}
		return s.groups.RemoveFromGroup(ctx, tx, loc.Groups().Applicants, target.ID)
	})
	if err != nil {
		return nil, err
	}

	return outcome.Success("The request of %s to join meetup location %s has been rejected.", target.Username, loc.Name), nil
}

// AddMember makes a user a member directly, clearing any pending request
func (s *Service) AddMember(ctx context.Context, actor *auth.User, slug, username string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "add_member", audit.EventTypeMemberAdded, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, rbac.CapAddMember); err != nil {
		return nil, err
	}
	if err := s.resolveTarget(ctx, op, username); err != nil {
		return nil, err
	}
	loc, target := op.loc, op.target

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockLocation(ctx, tx, loc.ID); err != nil {
			return err
		}

		state, err := stateOf(ctx, tx, loc.ID, target.ID)
		if err != nil {
			return err
		}
		if state.IsMember() {
			res = outcome.Warning("%s is already a member of meetup location %s.", target.Username, loc.Name)
			return nil
		}

		groups := loc.Groups()
		if state == StatePending {
			if _, err := deleteJoinRequest(ctx, tx, loc.ID, target.ID); err != nil {
				return err
			}
			if err := s.groups.RemoveFromGroup(ctx, tx, groups.Applicants, target.ID); err != nil {
				return err
			}
		}
		if err := insertMember(ctx, tx, loc.ID, target.ID, s.now()); err != nil {
			return err
		}
		if err := s.groups.AddToGroup(ctx, tx, groups.Members, target.ID); err != nil {
			return err
		}

		res = outcome.Success("%s has been added to the members of meetup location %s.", target.Username, loc.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Changed {
		s.notices.Emit(ctx, s.notice(op, notifications.NoticeJoinedLocation, []int64{target.ID},
			"You have joined meetup location %s.", loc.Name))
	}
	return res, nil
}

// RemoveMember removes a member, and an organizer's organizer status with
// it. The sole organizer is never removed.
func (s *Service) RemoveMember(ctx context.Context, actor *auth.User, slug, username string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "remove_member", audit.EventTypeMemberRemoved, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, rbac.CapDeleteMember); err != nil {
		return nil, err
	}
	if err := s.resolveTarget(ctx, op, username); err != nil {
		return nil, err
	}
	loc, target := op.loc, op.target

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockLocation(ctx, tx, loc.ID); err != nil {
			return err
		}

		state, err := stateOf(ctx, tx, loc.ID, target.ID)
		if err != nil {
			return err
		}
		if !state.IsMember() {
			res = outcome.Warning("%s is not a member of meetup location %s.", target.Username, loc.Name)
			return nil
		}

		groups := loc.Groups()
		if state == StateOrganizer {
			n, err := countOrganizers(ctx, tx, loc.ID)
			if err != nil {
				return err
			}
			if n <= 1 {
				res = outcome.Warning("%s is the only organizer of meetup location %s and cannot be removed.", target.Username, loc.Name)
				return nil
			}
			if err := deleteOrganizer(ctx, tx, loc.ID, target.ID); err != nil {
				return err
			}
			if err := s.groups.RemoveFromGroup(ctx, tx, groups.Organizers, target.ID); err != nil {
				return err
			}
		}

		if err := deleteMember(ctx, tx, loc.ID, target.ID); err != nil {
			return err
		}
		if err := s.groups.RemoveFromGroup(ctx, tx, groups.Members, target.ID); err != nil {
			return err
		}

		res = outcome.Success("%s has been removed from meetup location %s.", target.Username, loc.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PromoteOrganizer makes a member an organizer. Promoting an organizer is
// an idempotent warning; promoting a non-member changes nothing.
func (s *Service) PromoteOrganizer(ctx context.Context, actor *auth.User, slug, username string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "promote_organizer", audit.EventTypeOrganizerAdded, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, rbac.CapAddOrganizer); err != nil {
		return nil, err
	}
	if err := s.resolveTarget(ctx, op, username); err != nil {
		return nil, err
	}
	loc, target := op.loc, op.target

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockLocation(ctx, tx, loc.ID); err != nil {
			return err
		}

		state, err := stateOf(ctx, tx, loc.ID, target.ID)
		if err != nil {
			return err
		}
		switch state {
		case StateOrganizer:
			res = outcome.Warning("%s is already an organizer of meetup location %s.", target.Username, loc.Name)
			return nil
		case StateNone, StatePending:
			res = outcome.Warning("%s is not a member of meetup location %s.", target.Username, loc.Name)
			return nil
		}

		if err := insertOrganizer(ctx, tx, loc.ID, target.ID, s.now()); err != nil {
			return err
		}
		if err := s.groups.AddToGroup(ctx, tx, loc.Groups().Organizers, target.ID); err != nil {
			return err
		}

		res = outcome.Success("%s is now an organizer of meetup location %s.", target.Username, loc.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Changed {
		s.notices.Emit(ctx, s.notice(op, notifications.NoticeMadeOrganizer, []int64{target.ID},
			"You have been made an organizer of meetup location %s.", loc.Name))
	}
	return res, nil
}

// DemoteOrganizer returns an organizer to plain membership unless they are
// the sole organizer
func (s *Service) DemoteOrganizer(ctx context.Context, actor *auth.User, slug, username string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "demote_organizer", audit.EventTypeOrganizerRemoved, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, rbac.CapDeleteOrganizer); err != nil {
		return nil, err
	}
	if err := s.resolveTarget(ctx, op, username); err != nil {
		return nil, err
	}
	loc, target := op.loc, op.target

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockLocation(ctx, tx, loc.ID); err != nil {
			return err
		}

		state, err := stateOf(ctx, tx, loc.ID, target.ID)
		if err != nil {
			return err
		}
		if state != StateOrganizer {
			res = outcome.Warning("%s is not an organizer of meetup location %s.", target.Username, loc.Name)
			return nil
		}

		n, err := countOrganizers(ctx, tx, loc.ID)
		if err != nil {
			return err
		}
		if n <= 1 {
			res = outcome.Warning("%s is the only organizer of meetup location %s.", target.Username, loc.Name)
			return nil
		}

		if err := deleteOrganizer(ctx, tx, loc.ID, target.ID); err != nil {
			return err
		}
		if err := s.groups.RemoveFromGroup(ctx, tx, loc.Groups().Organizers, target.ID); err != nil {
			return err
		}

		res = outcome.Success("%s is no longer an organizer of meetup location %s.", target.Username, loc.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
