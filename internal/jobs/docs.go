// Package jobs provides scheduled background tasks for the fulfillment service.
//
// Jobs are built on github.com/robfig/cron/v3. A run is skipped while the
// previous one is still going, so a slow batch never overlaps the next.
//
// # Available Jobs
//
// 1. InboundDispatchJob - polls the inbound queue and starts a workflow per new order
// 2. StuckSweepJob - resumes orders that waited too long on a stage with a timeout outcome
//
// # Usage
//
//	dispatch := jobs.NewInboundDispatchJob(dispatchHandler, "@every 5s", commands.DispatchOptions{}, logger)
//	sweep, err := jobs.NewStuckSweepJob(sweepHandler, "@every 1m", 30*time.Minute, 100, logger)
//	if err != nil {
//		return err
//	}
//
//	jobManager := jobs.NewJobManager(dispatch, sweep)
//	if err := jobManager.StartAll(ctx); err != nil {
//		return err
//	}
//	defer jobManager.StopAll()
//
// # Error Handling
//
// Failed runs are logged and retried on the next tick. A job that fails to
// start stops every job started before it.
package jobs
