package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/locations"
	"github.com/platinummonkey/meetup/pkg/notifications"
)

const (
	TokenCleanupJob = "token_cleanup"
	JoinReminderJob = "join_reminder"
	AuditCleanupJob = "audit_cleanup"
)

// TokenCleanup deletes expired API tokens
func TokenCleanup(tokens *auth.TokenManager, logger logrus.FieldLogger) Job {
	return Job{
		Name: TokenCleanupJob,
		Run: func(ctx context.Context) error {
			n, err := tokens.CleanupExpiredTokens(ctx)
			if err != nil {
				return err
			}
			logger.WithField("deleted", n).Debug("Expired tokens removed")
			return nil
		},
	}
}

// AuditPruner deletes audit events older than a cutoff
type AuditPruner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// AuditCleanup prunes audit events older than retention
func AuditCleanup(pruner AuditPruner, retention time.Duration, logger logrus.FieldLogger) Job {
	return Job{
		Name: AuditCleanupJob,
		Run: func(ctx context.Context) error {
			n, err := pruner.Cleanup(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			logger.WithField("deleted", n).Debug("Old audit events removed")
			return nil
		},
	}
}

// JoinReminder sends each location's organizers one notice listing the
// join requests that have waited longer than age. Locations without
// organizers are skipped.
func JoinReminder(store *locations.Store, notices *notifications.Emitter, age time.Duration, logger logrus.FieldLogger) Job {
	return Job{
		Name: JoinReminderJob,
		Run: func(ctx context.Context) error {
			return remindOrganizers(ctx, store, notices, time.Now().UTC().Add(-age), logger)
		},
	}
}

func remindOrganizers(ctx context.Context, store *locations.Store, notices *notifications.Emitter, before time.Time, logger logrus.FieldLogger) error {
	stale, err := store.StaleRequests(ctx, before)
	if err != nil {
		return err
	}

	byLocation := make(map[int64][]locations.JoinRequest)
	var order []int64
	for _, jr := range stale {
		if _, seen := byLocation[jr.LocationID]; !seen {
			order = append(order, jr.LocationID)
		}
		byLocation[jr.LocationID] = append(byLocation[jr.LocationID], jr)
	}

	for _, locationID := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		loc, err := store.GetLocation(ctx, locationID)
		if err != nil {
			return fmt.Errorf("failed to load location %d: %w", locationID, err)
		}
		organizers, err := store.OrganizersOf(ctx, locationID)
		if err != nil {
			return err
		}
		if len(organizers) == 0 {
			logger.WithField("location", loc.Slug).Warn("Pending join requests but no organizers")
			continue
		}

		recipients := make([]int64, len(organizers))
		for i, o := range organizers {
			recipients[i] = o.UserID
		}
		requests := byLocation[locationID]
		usernames := make([]string, len(requests))
		for i, jr := range requests {
			usernames[i] = jr.Username
		}

		n := notifications.NewNotice(notifications.NoticeJoinRequestReminder, recipients,
			fmt.Sprintf("%d join request(s) for %s are waiting for an answer.", len(requests), loc.Name))
		n.LocationSlug = loc.Slug
		n.Data["usernames"] = usernames
		n.Data["oldest_requested_at"] = requests[0].RequestedAt
		notices.Emit(ctx, n)
	}
	return nil
}
