package services

import (
	"context"
	"log"
	"math/big"
	"time"

	"airdrop-backend/internal/clients"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/metrics"

	"gorm.io/gorm"
)

// MonitoringService keeps the operational gauges fresh: signer balance, gas
// price, and database health.
type MonitoringService struct {
	db       *gorm.DB
	token    clients.TokenContract
	gas      *clients.GasPriceClient
	network  *config.NetworkConfig
	interval time.Duration
	stopChan chan struct{}
}

// NewMonitoringService wires the monitor. interval <= 0 defaults to a minute.
func NewMonitoringService(db *gorm.DB, token clients.TokenContract, gas *clients.GasPriceClient, network *config.NetworkConfig, interval time.Duration) *MonitoringService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MonitoringService{
		db:       db,
		token:    token,
		gas:      gas,
		network:  network,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sampling loop.
func (m *MonitoringService) Start() {
	log.Printf("🚀 [Monitoring] Starting, sample interval: %v", m.interval)
	go func() {
		// Prime the gauges immediately rather than waiting a full interval.
		m.sample()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stopChan:
				return
			}
		}
	}()
}

// Stop halts the sampling loop.
func (m *MonitoringService) Stop() {
	close(m.stopChan)
}

func (m *MonitoringService) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if balance, err := m.token.SignerBalance(ctx); err == nil {
		wei, _ := new(big.Float).SetInt(balance).Float64()
		metrics.SignerBalance.WithLabelValues(m.network.Name, m.token.SignerAddress().Hex()).Set(wei)

		// A signer that cannot pay for one more batch is an incident in
		// waiting; make it loud before it becomes one.
		if balance.Cmp(big.NewInt(1e16)) < 0 {
			log.Printf("🚨 [Monitoring] Signer %s balance critically low: %s wei",
				m.token.SignerAddress().Hex(), balance.String())
		}
	} else {
		log.Printf("⚠️ [Monitoring] Failed to read signer balance: %v", err)
	}

	if m.gas != nil {
		if gwei, err := m.gas.GasPriceGwei(ctx); err == nil {
			metrics.GasPriceGwei.WithLabelValues(m.network.Name).Set(float64(gwei.Int64()))
		}
	}

	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil && sqlDB.PingContext(ctx) == nil {
			metrics.DBConnectionStatus.Set(1)
		} else {
			metrics.DBConnectionStatus.Set(0)
			log.Printf("⚠️ [Monitoring] Database ping failed")
		}
	}
}
