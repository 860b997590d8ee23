// Package reports posts the previous day's triage spend on a cron schedule.
package reports

import (
	"context"
	"fmt"
	"time"

	redisledger "github.com/flowbaker/triage/pkg/ledger/redis"
	slacknotify "github.com/flowbaker/triage/pkg/notify/slack"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSchedule runs shortly after the UTC day rolls over.
const DefaultSchedule = "5 0 * * *"

const reportTimeout = 30 * time.Second

type SummarySource interface {
	DailySummary(ctx context.Context, day time.Time) (redisledger.DailySummary, error)
}

type ReportPoster interface {
	PostReport(ctx context.Context, report slacknotify.DailyReport) error
}

type Scheduler struct {
	cron   *cron.Cron
	source SummarySource
	poster ReportPoster
	now    func() time.Time
}

type SchedulerDependencies struct {
	Source SummarySource
	Poster ReportPoster
}

// NewScheduler registers the daily report under schedule, a five field cron
// expression evaluated in UTC.
func NewScheduler(deps SchedulerDependencies, schedule string) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", schedule, err)
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		source: deps.Source,
		poster: deps.Poster,
		now:    time.Now,
	}

	s.cron.Schedule(parsed, cron.FuncJob(s.run))

	return s, nil
}

// Start runs the schedule until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	log.Info().Msg("Daily report scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	log.Info().Msg("Daily report scheduler stopped")
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	if err := s.PostPreviousDay(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to post daily report")
	}
}

// PostPreviousDay posts the summary of the UTC day before now.
func (s *Scheduler) PostPreviousDay(ctx context.Context) error {
	day := s.now().UTC().AddDate(0, 0, -1)

	summary, err := s.source.DailySummary(ctx, day)
	if err != nil {
		return err
	}

	if err := s.poster.PostReport(ctx, ReportFromSummary(summary)); err != nil {
		return err
	}

	log.Info().Str("day", summary.Day).Int64("tickets", summary.Tickets).Msg("Posted daily report")

	return nil
}

func ReportFromSummary(summary redisledger.DailySummary) slacknotify.DailyReport {
	return slacknotify.DailyReport{
		Day:          summary.Day,
		Tickets:      summary.Tickets,
		InputTokens:  summary.InputTokens,
		OutputTokens: summary.OutputTokens,
		TotalCost:    summary.TotalCost,
		Teams:        summary.Teams,
	}
}
