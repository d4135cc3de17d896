package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wms-package-engine/config"
	"wms-package-engine/detector"
	"wms-package-engine/erpclient"
	"wms-package-engine/repository"
	"wms-package-engine/server"
	"wms-package-engine/srvreg"
)

func main() {
	log.Println("===========================================")
	log.Println("   Package Engine - Starting Up")
	log.Println("===========================================")

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Configuration validation failed: %v", err)
	}

	log.Printf("✓ Configuration loaded")
	log.Printf("   HTTP Port: %s", cfg.HTTPPort)
	log.Printf("   ERP Endpoint: %s", cfg.ERPEndpoint)
	log.Printf("   Detection Interval: %s", cfg.DetectionInterval)
	log.Printf("   Database: %s:%s/%s", cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseName)

	// Initialize repository
	log.Println("\n📦 Initializing database...")
	repo := repository.NewRepository()
	if err := repo.ConnectDB(cfg.GetDSN()); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	if cfg.SeedDemoData {
		repo.Seed()
	}

	repo.SetDetectorConfig(repository.DetectorConfig{
		Epsilon:         cfg.DetectionEpsilon,
		MediumThreshold: cfg.MediumThreshold,
		HighThreshold:   cfg.HighThreshold,
	})

	// Initialize ERP client
	log.Println("\n🔗 Initializing ERP client...")
	erpClient := erpclient.NewERPClient(cfg.ERPEndpoint, cfg.ERPWarehouse)

	if err := erpClient.HealthCheck(); err != nil {
		log.Printf("⚠️  Warning: ERP health check failed: %v", err)
		log.Println("   Engine will start anyway, but detection runs will fail until the ERP is reachable")
	} else {
		log.Println("✓ ERP connection verified")
	}

	// Start the background consistency detector
	log.Println("\n🔍 Starting consistency detector...")
	consistencyDetector := detector.NewDetector(repo, erpClient, cfg.DetectionInterval)
	consistencyDetector.Start()

	// Initialize service registry
	log.Println("\nSetting up service registry...")
	serviceRegistry := srvreg.NewServiceRegistry(repo, erpClient)
	serviceRegistry.RegisterDefaultServices()

	// Initialize web server
	log.Println("\nStarting web server...")
	webServer := server.NewWebServer(cfg.HTTPPort, serviceRegistry, cfg.ERPWarehouse)
	if err := webServer.Start(); err != nil {
		log.Fatalf("❌ Failed to start web server: %v", err)
	}

	log.Println("\n===========================================")
	log.Printf("   Package Engine Ready!")
	log.Printf("   Listening on: http://localhost:%s", cfg.HTTPPort)
	log.Println("===========================================")
	log.Println("")

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutdown signal received, gracefully shutting down...")

	consistencyDetector.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := webServer.Shutdown(ctx); err != nil {
		log.Printf("❌ Error during server shutdown: %v", err)
	}

	log.Println("✓ Package Engine stopped")
	log.Println("Goodbye! 👋")
}
