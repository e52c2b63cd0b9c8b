// Command batch runs the recurring background jobs: the simulator round
// check and the group rollup pass. It is deployed as a single instance
// alongside the API; the conditional round advance keeps an accidental
// second instance harmless.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/database"
	"papertrade/internal/logger"
	"papertrade/internal/marketdata"
	"papertrade/internal/metrics"
	"papertrade/internal/scheduler"
	"papertrade/internal/services"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	db := dbManager.DB()
	provider := marketdata.NewYahooProvider(nil, appConfig.MarketDataBaseURL)
	orderValidator := services.NewOrderValidator(appConfig.LookbackYears, appConfig.FeeRate)
	accountService := services.NewAccountService(db)
	simulatorService := services.NewSimulatorService(db, orderValidator, accountService)
	groupService := services.NewGroupService(db, provider, accountService, appConfig.RollupPageSize)

	sched := scheduler.New(log)

	if err := sched.AddJob(appConfig.TickSchedule, &tickJob{simulators: simulatorService}); err != nil {
		return fmt.Errorf("failed to register tick job: %w", err)
	}
	if err := sched.AddJob(appConfig.RollupSchedule, &rollupJob{groups: groupService}); err != nil {
		return fmt.Errorf("failed to register rollup job: %w", err)
	}

	sched.Start()
	defer sched.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down batch runner")
	return nil
}

// tickJob advances every simulator whose next round is due.
type tickJob struct {
	simulators services.SimulatorServicer
}

func (j *tickJob) Name() string { return "simulator-tick" }

func (j *tickJob) Run() error {
	start := time.Now()
	defer func() {
		metrics.BatchPassDuration.WithLabelValues(j.Name()).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ticked, err := j.simulators.RunDueTicks(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if ticked > 0 {
		logger.Get().Infow("Round ticks executed", "simulators", ticked)
	}
	return nil
}

// rollupJob recomputes one page of groups, stalest first.
type rollupJob struct {
	groups services.GroupServicer
}

func (j *rollupJob) Name() string { return "group-rollup" }

func (j *rollupJob) Run() error {
	start := time.Now()
	defer func() {
		metrics.BatchPassDuration.WithLabelValues(j.Name()).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	processed, err := j.groups.RollupPass(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if processed > 0 {
		logger.Get().Infow("Group rollup pass completed", "groups", processed)
	}
	return nil
}
