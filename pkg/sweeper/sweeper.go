// Package sweeper removes upload temp files left behind by crashed or
// cancelled analyses.
package sweeper

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"eyescreen/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultSchedule = "*/15 * * * *"

type Sweeper struct {
	dir    string
	maxAge time.Duration
	log    *logrus.Logger
	cron   *cron.Cron
}

func New(dir string, maxAge time.Duration, logger *logrus.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		log:    logger,
	}
}

// Start schedules Sweep with a standard 5-field cron expression. An empty
// schedule uses DefaultSchedule.
func (s *Sweeper) Start(schedule string) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(time.Now()); err != nil {
			s.log.Warnf("Upload sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron = c
	c.Start()
	s.log.Infof("Upload sweeper scheduled (cron: %s) for %s", schedule, s.dir)
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep deletes regular upload files in dir last modified before
// now-maxAge and returns how many were removed.
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), "upload-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warnf("Could not remove stale upload %s: %v", e.Name(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		metrics.SweptFiles.Add(float64(removed))
		s.log.Infof("Removed %d stale upload(s) from %s", removed, s.dir)
	}
	return removed, nil
}
