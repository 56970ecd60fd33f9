// Package app wires the airdrop service graph. Everything is constructed
// explicitly and passed down; nothing reaches for globals.
package app

import (
	"fmt"
	"log"
	"time"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/db"
	"airdrop-backend/internal/events"
	"airdrop-backend/internal/services"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container holds every long-lived component of the service.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *gorm.DB

	NATSClient      *clients.NATSClient
	TokenClient     *clients.TokenClient
	GasPriceClient  *clients.GasPriceClient
	CommunityClient *clients.CommunityClient

	Emitter      *events.Emitter
	unbridgeNATS func()

	Eligibility *services.EligibilityService
	Planner     *services.BatchPlanner
	Executor    *services.DistributionExecutor
	Manager     *services.AirdropManager
	Scheduler   *services.AutonomousDistributionService
	RetrySvc    *services.FailedBatchRetryService
	Monitoring  *services.MonitoringService
}

// NewContainer constructs the full service graph from configuration.
// NATS is optional: a failed connection degrades to in-process events only.
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	log.Println("🚀 [Container] Initializing service container...")

	network, err := cfg.DefaultNetwork()
	if err != nil {
		return nil, fmt.Errorf("resolve default network: %w", err)
	}

	database, err := db.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		DB:      database,
		Emitter: events.NewEmitter(),
	}

	natsClient, err := clients.NewNATSClient(&cfg.NATS)
	if err != nil {
		log.Printf("⚠️ [Container] NATS unavailable, events stay in-process: %v", err)
	} else {
		c.NATSClient = natsClient
		c.unbridgeNATS = events.BridgeToNATS(c.Emitter, natsClient)
	}

	c.TokenClient, err = clients.NewTokenClient(network)
	if err != nil {
		return nil, fmt.Errorf("initialize token client: %w", err)
	}
	c.GasPriceClient = clients.NewGasPriceClient(network.ChainID)
	c.CommunityClient = clients.NewCommunityClient(&cfg.Community)

	c.Eligibility, err = services.NewEligibilityService(c.CommunityClient, cfg.Distribution)
	if err != nil {
		return nil, fmt.Errorf("initialize eligibility service: %w", err)
	}
	c.Planner, err = services.NewBatchPlanner(cfg.Distribution)
	if err != nil {
		return nil, fmt.Errorf("initialize batch planner: %w", err)
	}
	c.Executor = services.NewDistributionExecutor(
		c.TokenClient, c.GasPriceClient, c.Emitter, network, cfg.Distribution, c.DB)
	c.Manager = services.NewAirdropManager(
		c.Planner, c.Executor, c.TokenClient, c.Emitter, network, c.DB)
	c.Scheduler = services.NewAutonomousDistributionService(
		c.Eligibility, c.Manager, c.CommunityClient, c.Emitter, cfg.Distribution, nil)
	c.RetrySvc = services.NewFailedBatchRetryService(
		c.DB, c.TokenClient, c.GasPriceClient, c.Emitter, network.MaxGasPriceGwei)
	c.Monitoring = services.NewMonitoringService(
		c.DB, c.TokenClient, c.GasPriceClient, network, time.Minute)

	log.Println("✅ [Container] Service container initialized")
	return c, nil
}

// Start launches the background services.
func (c *Container) Start() {
	c.Scheduler.Start()
	c.RetrySvc.Start(time.Minute)
	c.Monitoring.Start()
}

// Stop shuts the background services down in reverse order and closes
// external connections. Safe to call once.
func (c *Container) Stop() {
	log.Println("🧹 [Container] Shutting down...")

	if c.Monitoring != nil {
		c.Monitoring.Stop()
	}
	if c.RetrySvc != nil {
		c.RetrySvc.Stop()
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}

	if c.unbridgeNATS != nil {
		c.unbridgeNATS()
	}
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.TokenClient != nil {
		c.TokenClient.Close()
	}

	if sqlDB, err := c.DB.DB(); err == nil {
		sqlDB.Close()
	}

	log.Println("✅ [Container] Shutdown complete")
}
