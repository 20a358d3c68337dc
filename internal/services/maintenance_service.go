package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/picksy/desktop/internal/contract"
	"github.com/picksy/desktop/internal/observability"
	"github.com/picksy/desktop/internal/repository"
)

// MaintenanceStatus describes the last missing-file sweep
type MaintenanceStatus struct {
	Running         bool      `json:"running"`
	Enabled         bool      `json:"enabled"`
	LastRun         time.Time `json:"lastRun,omitempty"`
	LastRunDuration string    `json:"lastRunDuration,omitempty"`
	Missing         int       `json:"missing"`
	Disconnected    int       `json:"disconnected"`
	Restored        int       `json:"restored"`
	Errors          []string  `json:"errors,omitempty"`
}

// MaintenanceService periodically checks that every library photo still has
// its original file. Photos whose file vanished are marked disconnected and
// go back to synced once the file reappears.
type MaintenanceService struct {
	photoRepo repository.PhotoRepo
	library   *LibraryService
	interval  time.Duration
	logger    *observability.Logger

	mu      sync.RWMutex
	running bool
	status  MaintenanceStatus
}

// NewMaintenanceService creates a MaintenanceService. An interval of zero
// disables the background loop; RunOnce still works.
func NewMaintenanceService(photoRepo repository.PhotoRepo, library *LibraryService, interval time.Duration) *MaintenanceService {
	return &MaintenanceService{
		photoRepo: photoRepo,
		library:   library,
		interval:  interval,
		logger:    observability.GetLogger().WithField("component", "maintenance"),
		status:    MaintenanceStatus{Enabled: interval > 0},
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *MaintenanceService) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("maintenance disabled")
		return
	}
	s.logger.WithField("interval", s.interval.String()).Info("maintenance started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).Error("maintenance sweep failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance stopped")
			return
		case <-ticker.C:
		}
	}
}

// Status returns the outcome of the last sweep
func (s *MaintenanceService) Status() MaintenanceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := s.status
	status.Running = s.running
	status.Errors = append([]string(nil), s.status.Errors...)
	return status
}

// RunOnce performs a sweep. A sweep already in progress is not repeated and
// its last status is returned instead.
func (s *MaintenanceService) RunOnce(ctx context.Context) (MaintenanceStatus, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("maintenance already running, skipping")
		return s.Status(), nil
	}
	s.running = true
	s.mu.Unlock()

	ctx, span := observability.StartServiceSpan(ctx, "maintenance", "sweep")
	defer span.End()
	start := time.Now()

	result, err := s.sweep(ctx)

	s.mu.Lock()
	s.running = false
	if err == nil {
		result.Enabled = s.status.Enabled
		result.LastRun = start
		result.LastRunDuration = time.Since(start).Round(time.Millisecond).String()
		s.status = result
	}
	s.mu.Unlock()

	if err != nil {
		observability.RecordError(span, err)
		return s.Status(), err
	}

	if result.Disconnected > 0 || result.Restored > 0 {
		s.library.publish(ctx)
	}
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"missing":      result.Missing,
		"disconnected": result.Disconnected,
		"restored":     result.Restored,
		"duration":     result.LastRunDuration,
	}).Info("maintenance sweep finished")
	observability.SetSuccess(span)
	return s.Status(), nil
}

func (s *MaintenanceService) sweep(ctx context.Context) (MaintenanceStatus, error) {
	var result MaintenanceStatus

	photos, err := s.photoRepo.List(ctx)
	if err != nil {
		return result, err
	}

	var missing, present []string
	for _, p := range photos {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		_, statErr := os.Stat(p.ImagePath)
		switch {
		case statErr == nil:
			if p.SyncStatus == contract.SyncStatusDisconnected {
				present = append(present, p.ID)
			}
		case os.IsNotExist(statErr):
			missing = append(missing, p.ID)
		default:
			result.Errors = append(result.Errors, p.ImagePath+": "+statErr.Error())
		}
	}
	result.Missing = len(missing)

	n, err := s.photoRepo.SetSyncStatus(ctx, missing, contract.SyncStatusDisconnected)
	if err != nil {
		return result, err
	}
	result.Disconnected = int(n)

	n, err = s.photoRepo.SetSyncStatus(ctx, present, contract.SyncStatusSynced)
	if err != nil {
		return result, err
	}
	result.Restored = int(n)
	return result, nil
}
