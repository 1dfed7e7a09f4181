package jobs

import (
	"context"
	"fmt"
	"time"

	"compliance_flow_app_go/models"
	"compliance_flow_app_go/services"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const sweepBatchSize = 200

// SweepSummary counts what a reminder sweep did
type SweepSummary struct {
	Evaluated  int `json:"evaluated"`
	Suppressed int `json:"suppressed"`
	Sent       int `json:"sent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// SweepExpiryReminders walks every record whose reminders are still active,
// stops the ones past their cutoff and sends the reminders that are due.
// A failing record is counted and the sweep moves on.
func SweepExpiryReminders(ctx context.Context, database *gorm.DB, engine *services.ExpiryEngine) (SweepSummary, error) {
	var summary SweepSummary
	lastID := ""
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		var batch []models.ExpiryRecord
		err := database.WithContext(ctx).
			Where("email_service_active = ? AND id > ?", true, lastID).
			Order("id ASC").
			Limit(sweepBatchSize).
			Find(&batch).Error
		if err != nil {
			return summary, fmt.Errorf("failed to load expiry records: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			outcome := sweepRecord(ctx, engine, &batch[i])
			services.ObserveSweepOutcome(outcome)
			summary.Evaluated++
			switch outcome {
			case services.SweepOutcomeSuppressed:
				summary.Suppressed++
			case services.SweepOutcomeSent:
				summary.Sent++
			case services.SweepOutcomeSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
		}
		lastID = batch[len(batch)-1].ID
	}

	log.Info().
		Int("evaluated", summary.Evaluated).
		Int("suppressed", summary.Suppressed).
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("[CRON] Reminder sweep finished")
	return summary, nil
}

// sweepRecord processes one record and never panics
func sweepRecord(ctx context.Context, engine *services.ExpiryEngine, rec *models.ExpiryRecord) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("record_id", rec.ID).Msg("[CRON] Recovered while sweeping record")
			outcome = services.SweepOutcomeFailed
		}
	}()

	decision, err := engine.ApplySuppression(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("record_id", rec.ID).Msg("[CRON] Suppression check failed")
		return services.SweepOutcomeFailed
	}
	if decision.ShouldStop {
		return services.SweepOutcomeSuppressed
	}

	result := engine.SendReminder(ctx, rec)
	switch {
	case !result.Success:
		log.Warn().Str("record_id", rec.ID).Str("reason", result.Reason).Msg("[CRON] Reminder failed")
		return services.SweepOutcomeFailed
	case result.Sent:
		return services.SweepOutcomeSent
	default:
		return services.SweepOutcomeSkipped
	}
}

// StartScheduler registers the reminder sweep on a cron schedule in the given
// timezone and starts it. The caller stops the returned cron on shutdown.
func StartScheduler(database *gorm.DB, engine *services.ExpiryEngine, schedule, timezone string) (*cron.Cron, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", timezone, err)
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(schedule, func() {
		log.Info().Msg("[CRON] Running reminder sweep")
		if _, err := SweepExpiryReminders(context.Background(), database, engine); err != nil {
			log.Error().Err(err).Msg("[CRON] Reminder sweep aborted")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}

	c.Start()
	log.Info().Str("schedule", schedule).Str("timezone", timezone).Msg("[CRON] Scheduler started")
	return c, nil
}
