// Package jobs runs periodic maintenance on a cron schedule.
//
// Three jobs are provided:
//
//   - token_cleanup deletes API tokens past their expiry
//   - join_reminder reminds organizers of join requests left unanswered
//   - audit_cleanup drops audit events older than the retention window
//
// Each run gets its own timeout, is counted in the job metrics and is
// logged through logrus like the other background workers. A panic inside
// a job is recovered and reported as a failed run.
//
// # Usage
//
//	sched := jobs.NewScheduler(logger, metrics)
//	sched.Add(jobs.TokenCleanup(tokens), cfg.Jobs.TokenCleanupSchedule)
//	sched.Start()
//	defer sched.Stop(ctx)
package jobs
