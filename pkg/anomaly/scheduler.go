package anomaly

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultRefitSchedule refits the baseline hourly.
const DefaultRefitSchedule = "0 * * * *"

// RefitScheduler refits the detector baseline on a cron schedule so old
// traffic patterns age out of the statistics.
type RefitScheduler struct {
	cron     *cron.Cron
	detector *Detector
	logger   *slog.Logger
}

func NewRefitScheduler(detector *Detector, schedule string, logger *slog.Logger) (*RefitScheduler, error) {
	if schedule == "" {
		schedule = DefaultRefitSchedule
	}

	scheduler := &RefitScheduler{
		cron:     cron.New(),
		detector: detector,
		logger:   logger.With("module", "anomaly-scheduler"),
	}

	if _, err := scheduler.cron.AddFunc(schedule, func() {
		scheduler.logger.Debug("Running scheduled baseline refit")
		scheduler.detector.Refit()
	}); err != nil {
		return nil, err
	}

	return scheduler, nil
}

func (s *RefitScheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running refit to finish.
func (s *RefitScheduler) Stop() {
	<-s.cron.Stop().Done()
}
