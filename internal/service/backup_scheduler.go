package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/model"
)

// backupRunTimeout bounds one automatic backup.
const backupRunTimeout = 5 * time.Minute

// BackupCreator is the part of BackupManager the scheduler drives.
type BackupCreator interface {
	CreateBackup(ctx context.Context, kind model.BackupKind) (model.BackupMetadata, error)
}

// BackupScheduler runs automatic backups on a fixed interval. Failures are logged
// and never stop the timer.
type BackupScheduler struct {
	backups   BackupCreator
	interval  time.Duration
	log       logrus.FieldLogger
	ticker    *time.Ticker
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewBackupScheduler creates a scheduler. A zero interval means 30 minutes.
func NewBackupScheduler(backups BackupCreator, interval time.Duration, log logrus.FieldLogger) *BackupScheduler {
	if interval <= 0 {
		interval = DefaultBackupInterval
	}

	return &BackupScheduler{
		backups:  backups,
		interval: interval,
		log:      log.WithField("component", "backup_scheduler"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the timer. Calling Start on a running or stopped scheduler does nothing.
func (s *BackupScheduler) Start() {
	s.mu.Lock()
	select {
	case <-s.stopCh:
		s.mu.Unlock()
		return
	default:
	}
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	s.log.WithField("interval", s.interval.String()).Info("backup scheduler started")

	go s.run()
}

// run is the main scheduler loop.
func (s *BackupScheduler) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.ticker.C:
			s.runBackup()
		case <-s.stopCh:
			s.log.Info("backup scheduler stopped")
			return
		}
	}
}

// runBackup performs one automatic backup.
func (s *BackupScheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), backupRunTimeout)
	defer cancel()

	meta, err := s.backups.CreateBackup(ctx, model.BackupAutomatic)
	if err != nil {
		s.log.WithError(err).Error("automatic backup failed")
		return
	}
	s.log.WithField("backup_id", meta.ID).Debug("automatic backup completed")
}

// Stop stops the timer and waits for an in-flight backup to finish.
// It is safe to call more than once.
func (s *BackupScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		running := s.isRunning
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()

		if running {
			<-s.doneCh
		}
	})
}

// RunNow triggers an immediate automatic backup and returns its outcome.
func (s *BackupScheduler) RunNow(ctx context.Context) (model.BackupMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, backupRunTimeout)
	defer cancel()

	return s.backups.CreateBackup(ctx, model.BackupAutomatic)
}
