package meetups

import (
	"context"
	"fmt"

	"github.com/platinummonkey/meetup/pkg/audit"
	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/notifications"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

// resolved is a comment target checked to belong to a location
type resolved struct {
	target         Target
	meetup         *Meetup
	supportRequest *SupportRequest
}

// resolveTarget matches on the target kind and loads the object it names
// from op's location. Targets of other locations are not found.
func (s *Service) resolveTarget(ctx context.Context, op *operation, target Target) (*resolved, error) {
	switch target.Kind {
	case TargetMeetup:
		m, err := s.store.getMeetupByID(ctx, op.loc.ID, target.ID)
		if err != nil {
			return nil, err
		}
		return &resolved{target: target, meetup: m}, nil

	case TargetSupportRequest:
		sr, err := s.store.getSupportRequestInLocation(ctx, op.loc.ID, target.ID)
		if err != nil {
			return nil, err
		}
		m, err := s.store.getMeetupByID(ctx, op.loc.ID, sr.MeetupID)
		if err != nil {
			return nil, err
		}
		return &resolved{target: target, meetup: m, supportRequest: sr}, nil
	}

	verr := outcome.NewValidationError()
	verr.Add("target", fmt.Sprintf("Unknown comment target %q.", target.Kind))
	return nil, verr
}

func (s *Service) commentVisible(ctx context.Context, op *operation, c *Comment) (bool, error) {
	if c.IsApproved {
		return true, nil
	}
	if op.actor != nil && c.AuthorID != nil && *c.AuthorID == op.actor.ID {
		return true, nil
	}
	return s.allowed(ctx, op, rbac.CapApproveComment)
}

// Comments lists the comments on a target. Unapproved comments are shown
// only to their author and to those who may approve them.
func (s *Service) Comments(ctx context.Context, actor *auth.User, slug string, target Target) ([]*Comment, error) {
	op := &operation{actor: actor}
	if err := s.load(ctx, op, slug, ""); err != nil {
		return nil, err
	}
	if _, err := s.resolveTarget(ctx, op, target); err != nil {
		return nil, err
	}

	all, err := s.store.Comments(ctx, target)
	if err != nil {
		return nil, err
	}

	visible := make([]*Comment, 0, len(all))
	for _, c := range all {
		ok, err := s.commentVisible(ctx, op, c)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// AddComment attaches a comment to a meetup or support request. Comments
// by those who may approve comments are approved right away.
func (s *Service) AddComment(ctx context.Context, actor *auth.User, slug string, target Target, body string) (c *Comment, err error) {
	ctx, op := s.begin(ctx, "add_comment", "", actor, slug)
	defer func() { s.finish(ctx, op, nil, err) }()

	if err := s.resolve(ctx, op, slug, ""); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, s.can(op, rbac.CapAddComment)); err != nil {
		return nil, err
	}
	r, err := s.resolveTarget(ctx, op, target)
	if err != nil {
		return nil, err
	}
	op.meetup = r.meetup
	if err := validateBody(body); err != nil {
		return nil, err
	}

	approved, err := s.allowed(ctx, op, rbac.CapApproveComment)
	if err != nil {
		return nil, err
	}

	author := actor.ID
	c = &Comment{
		LocationID:     op.loc.ID,
		Target:         target,
		AuthorID:       &author,
		AuthorUsername: actor.Username,
		Body:           body,
		IsApproved:     approved,
	}
	if err := s.store.CreateComment(ctx, c, s.now()); err != nil {
		return nil, err
	}

	if sr := r.supportRequest; sr != nil && sr.VolunteerID != nil && *sr.VolunteerID != actor.ID {
		n := s.notice(op, notifications.NoticeSupportRequestComment, []int64{*sr.VolunteerID},
			"%s commented on your support request for meetup %s.", actor.DisplayName(), r.meetup.Title)
		n.Data["support_request_id"] = sr.ID
		n.Data["comment_id"] = c.ID
		s.notices.Emit(ctx, n)
	}
	return c, nil
}

// UpdateComment lets the author change a comment's body
func (s *Service) UpdateComment(ctx context.Context, actor *auth.User, slug string, id int64, body string) (c *Comment, err error) {
	ctx, op := s.begin(ctx, "update_comment", "", actor, slug)
	defer func() { s.finish(ctx, op, nil, err) }()

	if err := s.resolve(ctx, op, slug, ""); err != nil {
		return nil, err
	}
	c, err = s.store.GetComment(ctx, op.loc.ID, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID == nil {
		return nil, rbac.ErrForbidden
	}
	if err := rbac.Enforce(ctx, actor, rbac.RequireUser(*c.AuthorID)); err != nil {
		return nil, err
	}
	if err := validateBody(body); err != nil {
		return nil, err
	}

	c.Body = body
	if err := s.store.UpdateComment(ctx, c, s.now()); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment removes a comment. Its author may always delete it.
func (s *Service) DeleteComment(ctx context.Context, actor *auth.User, slug string, id int64) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "delete_comment", audit.EventTypeCommentDeleted, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.resolve(ctx, op, slug, ""); err != nil {
		return nil, err
	}
	c, err := s.store.GetComment(ctx, op.loc.ID, id)
	if err != nil {
		return nil, err
	}

	guards := []rbac.Predicate{s.can(op, rbac.CapDeleteComment)}
	if c.AuthorID != nil {
		guards = append([]rbac.Predicate{rbac.RequireUser(*c.AuthorID)}, guards...)
	}
	if err := rbac.Enforce(ctx, actor, rbac.AnyOf(guards...)); err != nil {
		return nil, err
	}

	if err := s.store.DeleteComment(ctx, c.ID); err != nil {
		return nil, err
	}
	return outcome.Success("Comment has been deleted."), nil
}

// ApproveComment publishes a pending comment. Approving twice is a warning.
func (s *Service) ApproveComment(ctx context.Context, actor *auth.User, slug string, id int64) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "approve_comment", audit.EventTypeCommentApproved, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.resolve(ctx, op, slug, ""); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, s.can(op, rbac.CapApproveComment)); err != nil {
		return nil, err
	}
	c, err := s.store.GetComment(ctx, op.loc.ID, id)
	if err != nil {
		return nil, err
	}

	approved, err := s.store.ApproveComment(ctx, c.ID, s.now())
	if err != nil {
		return nil, err
	}
	if !approved {
		return outcome.Warning("Comment is already approved."), nil
	}
	return outcome.Success("Comment has been approved."), nil
}
