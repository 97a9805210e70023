package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	"github.com/robfig/cron/v3"
)

// Maintenance serialises database housekeeping against regular writes.
type Maintenance interface {
	// Start schedules background maintenance if enabled.
	Start(ctx context.Context) error
	// Stop cancels the schedule and waits for a running pass to finish.
	Stop() error
	// AcquireOperationLock acquires a shared lock for a database operation.
	// The returned function releases it.
	AcquireOperationLock() func()
	// GetMetrics returns a snapshot of maintenance counters.
	GetMetrics() MaintenanceMetrics
	// RunMaintenance performs one maintenance pass.
	RunMaintenance(ctx context.Context) error
}

// MaintenanceMetrics provides visibility into maintenance operations.
type MaintenanceMetrics struct {
	LastMaintenanceTime  time.Time
	MaintenanceCount     uint64
	LastMaintenanceError error
}

// NoOpMaintenance is used when maintenance is not configured.
type NoOpMaintenance struct{}

func (m *NoOpMaintenance) Start(context.Context) error          { return nil }
func (m *NoOpMaintenance) Stop() error                          { return nil }
func (m *NoOpMaintenance) RunMaintenance(context.Context) error { return nil }
func (m *NoOpMaintenance) AcquireOperationLock() func()         { return func() {} }
func (m *NoOpMaintenance) GetMetrics() MaintenanceMetrics       { return MaintenanceMetrics{} }

// MaintenanceCoordinator runs WAL checkpoints and VACUUM on a cron schedule.
// Database operations hold the read side of opLock, maintenance holds the
// write side, so a pass only starts once every in-flight transaction is done.
type MaintenanceCoordinator struct {
	db     *sql.DB
	config config.MaintenanceConfig
	dbPath string
	log    *logger.Logger

	opLock    sync.RWMutex
	scheduler *cron.Cron

	metricsLock sync.Mutex
	metrics     MaintenanceMetrics
}

// NewMaintenanceCoordinator creates a maintenance coordinator, or a no-op one when cfg is nil.
func NewMaintenanceCoordinator(dbPath string, db *sql.DB, cfg *config.MaintenanceConfig,
	log *logger.Logger) Maintenance {
	if cfg == nil {
		return &NoOpMaintenance{}
	}

	return newMaintenanceCoordinator(dbPath, db, *cfg, log)
}

func newMaintenanceCoordinator(dbPath string, db *sql.DB, cfg config.MaintenanceConfig,
	log *logger.Logger) *MaintenanceCoordinator {
	return &MaintenanceCoordinator{
		db:     db,
		config: cfg,
		dbPath: dbPath,
		log:    log.WithComponent(common.ComponentMaintenance),
	}
}

// Start schedules background maintenance every CheckInterval.
func (m *MaintenanceCoordinator) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Info("Background maintenance is disabled")
		return nil
	}

	if m.config.VacuumOnStartup {
		m.log.Info("Running startup maintenance")
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnf("Startup maintenance failed: %v", err)
		}
	}

	m.scheduler = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", m.config.CheckInterval.Duration)
	if _, err := m.scheduler.AddFunc(spec, func() {
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnf("Periodic maintenance failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	m.scheduler.Start()

	m.log.Infof("Background maintenance started - interval: %v, checkpoint mode: %s",
		m.config.CheckInterval.Duration, m.config.WALCheckpointMode)

	return nil
}

// Stop cancels the schedule and waits for a running pass.
func (m *MaintenanceCoordinator) Stop() error {
	if m.scheduler == nil {
		return nil
	}

	<-m.scheduler.Stop().Done()
	m.log.Info("Background maintenance stopped")

	return nil
}

// RunMaintenance checkpoints the WAL and vacuums the database under the exclusive lock.
func (m *MaintenanceCoordinator) RunMaintenance(ctx context.Context) error {
	start := time.Now()

	m.opLock.Lock()
	defer m.opLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	initialSize, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to get initial DB size: %v", err)
	}

	var runErr error
	if err := m.walCheckpoint(ctx); err != nil {
		runErr = fmt.Errorf("WAL checkpoint failed: %w", err)
	}
	if err := Vacuum(m.db); err != nil && runErr == nil {
		runErr = err
	}

	finalSize, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to get final DB size: %v", err)
	}

	duration := time.Since(start)
	maintenanceDone(duration, runErr)
	dbSizeLog(finalSize)

	m.metricsLock.Lock()
	m.metrics.LastMaintenanceTime = time.Now().UTC()
	m.metrics.MaintenanceCount++
	m.metrics.LastMaintenanceError = runErr
	m.metricsLock.Unlock()

	if runErr != nil {
		m.log.Warnf("Maintenance completed with errors in %v: %v", duration, runErr)
		return runErr
	}

	if initialSize > finalSize {
		spaceReclaimedLog(initialSize - finalSize)
		m.log.Infof("Maintenance reclaimed %d MB in %v",
			common.BytesToMB(uint64(initialSize-finalSize)), duration)
	} else {
		m.log.Infof("Maintenance completed in %v", duration)
	}

	return nil
}

func (m *MaintenanceCoordinator) walCheckpoint(ctx context.Context) error {
	var mode string
	if err := m.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		m.log.Debug("Database not in WAL mode, skipping WAL checkpoint")
		return nil
	}

	var busy, logFrames, checkpointed int
	query := fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.config.WALCheckpointMode)
	if err := m.db.QueryRowContext(ctx, query).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("failed to execute WAL checkpoint: %w", err)
	}

	walCheckpointInc(strings.ToLower(m.config.WALCheckpointMode))
	m.log.Debugf("WAL checkpoint - mode: %s, busy: %d, log_frames: %d, checkpointed: %d",
		m.config.WALCheckpointMode, busy, logFrames, checkpointed)

	if busy > 0 {
		m.log.Warnf("WAL checkpoint encountered %d busy pages", busy)
	}

	return nil
}

// AcquireOperationLock acquires the shared side of the maintenance lock.
func (m *MaintenanceCoordinator) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// GetMetrics returns a snapshot of maintenance counters.
func (m *MaintenanceCoordinator) GetMetrics() MaintenanceMetrics {
	m.metricsLock.Lock()
	defer m.metricsLock.Unlock()

	return m.metrics
}
