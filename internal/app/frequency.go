package app

import (
	"NewsHarvester/internal/config"
	"NewsHarvester/internal/domain"
)

// frequencySchedules keeps only cron entries whose key is a known
// frequency tag; typos in config get dropped instead of silently
// registering an orphan schedule.
func frequencySchedules(cfg config.Config) map[domain.Frequency]string {
	known := map[domain.Frequency]struct{}{}
	for _, f := range domain.Frequencies() {
		known[f] = struct{}{}
	}

	schedules := map[domain.Frequency]string{}
	for tag, expr := range cfg.Scheduler.Schedules {
		if _, ok := known[domain.Frequency(tag)]; ok && expr != "" {
			schedules[domain.Frequency(tag)] = expr
		}
	}
	return schedules
}

// parseFrequency maps a CLI tag to a frequency filter; unknown or empty
// tags mean "all frequencies".
func parseFrequency(tag string) domain.Frequency {
	for _, f := range domain.Frequencies() {
		if string(f) == tag {
			return f
		}
	}
	return ""
}
