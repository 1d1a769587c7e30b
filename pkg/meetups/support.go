package meetups

import (
	"context"

	"github.com/platinummonkey/meetup/pkg/audit"
	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/notifications"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

// supportRequestVisible reports whether the actor may see an unapproved support request
func (s *Service) supportRequestVisible(ctx context.Context, op *operation, sr *SupportRequest) (bool, error) {
	if sr.IsApproved {
		return true, nil
	}
	if op.actor != nil && sr.VolunteerID != nil && *sr.VolunteerID == op.actor.ID {
		return true, nil
	}
	return s.allowed(ctx, op, rbac.CapApproveSupportRequest)
}

// SupportRequests lists a meetup's support requests. Unapproved requests
// are shown only to their volunteer and to those who may approve them.
func (s *Service) SupportRequests(ctx context.Context, actor *auth.User, slug, meetupSlug string) ([]*SupportRequest, error) {
	op := &operation{actor: actor}
	if err := s.load(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}

	all, err := s.store.SupportRequests(ctx, op.meetup.ID)
	if err != nil {
		return nil, err
	}

	visible := make([]*SupportRequest, 0, len(all))
	for _, sr := range all {
		ok, err := s.supportRequestVisible(ctx, op, sr)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, sr)
		}
	}
	return visible, nil
}

// GetSupportRequest returns one support request, hiding unapproved ones
// like SupportRequests does
func (s *Service) GetSupportRequest(ctx context.Context, actor *auth.User, slug, meetupSlug string, id int64) (*SupportRequest, error) {
	op := &operation{actor: actor}
	if err := s.load(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}

	sr, err := s.store.GetSupportRequest(ctx, op.meetup.ID, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.supportRequestVisible(ctx, op, sr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, outcome.NotFound("support request", key(id))
	}
	return sr, nil
}

// CreateSupportRequest offers the actor's help at a meetup
func (s *Service) CreateSupportRequest(ctx context.Context, actor *auth.User, slug, meetupSlug, description string) (sr *SupportRequest, err error) {
	ctx, op := s.begin(ctx, "create_support_request", "", actor, slug)
	defer func() { s.finish(ctx, op, nil, err) }()

	if err := s.resolve(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, s.can(op, rbac.CapAddSupportRequest)); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	volunteer := actor.ID
	sr = &SupportRequest{
		MeetupID:          op.meetup.ID,
		VolunteerID:       &volunteer,
		VolunteerUsername: actor.Username,
		Description:       description,
	}
	if err := s.store.CreateSupportRequest(ctx, sr, s.now()); err != nil {
		return nil, err
	}

	n := s.notice(op, notifications.NoticeNewSupportRequest, s.organizerIDs(ctx, op),
		"%s has offered support for meetup %s.", actor.DisplayName(), op.meetup.Title)
	n.Data["support_request_id"] = sr.ID
	s.notices.Emit(ctx, n)
	return sr, nil
}

// UpdateSupportRequest lets the volunteer edit their request
func (s *Service) UpdateSupportRequest(ctx context.Context, actor *auth.User, slug, meetupSlug string, id int64, description string) (sr *SupportRequest, err error) {
	ctx, op := s.begin(ctx, "update_support_request", "", actor, slug)
	defer func() { s.finish(ctx, op, nil, err) }()

	if err := s.resolve(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}
	sr, err = s.store.GetSupportRequest(ctx, op.meetup.ID, id)
	if err != nil {
		return nil, err
	}
	if sr.VolunteerID == nil {
		return nil, rbac.ErrForbidden
	}
	if err := rbac.Enforce(ctx, actor, rbac.RequireUser(*sr.VolunteerID)); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	sr.Description = description
	if err := s.store.UpdateSupportRequest(ctx, sr, s.now()); err != nil {
		return nil, err
	}
	return sr, nil
}

// DeleteSupportRequest removes a support request. Its volunteer may always
// withdraw it.
func (s *Service) DeleteSupportRequest(ctx context.Context, actor *auth.User, slug, meetupSlug string, id int64) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "delete_support_request", "", actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.resolve(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}
	sr, err := s.store.GetSupportRequest(ctx, op.meetup.ID, id)
	if err != nil {
		return nil, err
	}

	guards := []rbac.Predicate{s.can(op, rbac.CapDeleteSupportRequest)}
	if sr.VolunteerID != nil {
		guards = append([]rbac.Predicate{rbac.RequireUser(*sr.VolunteerID)}, guards...)
	}
	if err := rbac.Enforce(ctx, actor, rbac.AnyOf(guards...)); err != nil {
		return nil, err
	}

	if err := s.store.DeleteSupportRequest(ctx, sr.ID); err != nil {
		return nil, err
	}
	return outcome.Success("Support request for meetup %s has been deleted.", op.meetup.Title), nil
}

// ApproveSupportRequest accepts a volunteer's offer. Approving twice is a
// warning.
func (s *Service) ApproveSupportRequest(ctx context.Context, actor *auth.User, slug, meetupSlug string, id int64) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "approve_support_request", audit.EventTypeSupportRequestApproved, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.resolve(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, s.can(op, rbac.CapApproveSupportRequest)); err != nil {
		return nil, err
	}
	sr, err := s.store.GetSupportRequest(ctx, op.meetup.ID, id)
	if err != nil {
		return nil, err
	}

	approved, err := s.store.ApproveSupportRequest(ctx, sr.ID, s.now())
	if err != nil {
		return nil, err
	}
	if !approved {
		return outcome.Warning("The support request of %s for meetup %s is already approved.", sr.VolunteerUsername, op.meetup.Title), nil
	}

	if sr.VolunteerID != nil {
		n := s.notice(op, notifications.NoticeSupportRequestApproved, []int64{*sr.VolunteerID},
			"Your support request for meetup %s has been approved.", op.meetup.Title)
		n.Data["support_request_id"] = sr.ID
		s.notices.Emit(ctx, n)
	}
	return outcome.Success("The support request of %s for meetup %s has been approved.", sr.VolunteerUsername, op.meetup.Title), nil
}

// RejectSupportRequest declines a volunteer's offer and removes it
func (s *Service) RejectSupportRequest(ctx context.Context, actor *auth.User, slug, meetupSlug string, id int64) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "reject_support_request", audit.EventTypeSupportRequestRejected, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.resolve(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, s.can(op, rbac.CapRejectSupportRequest)); err != nil {
		return nil, err
	}
	sr, err := s.store.GetSupportRequest(ctx, op.meetup.ID, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteSupportRequest(ctx, sr.ID); err != nil {
		return nil, err
	}
	return outcome.Success("The support request of %s for meetup %s has been rejected.", sr.VolunteerUsername, op.meetup.Title), nil
}
