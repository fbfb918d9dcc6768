// Package handlers contains HTTP handler interfaces, implementations, and middleware.
//
// This package provides:
//   - Health check interfaces and implementations
//   - Platform webhook ingestion with per-type routing
//   - Reusable middleware components
//   - API key authentication against bcrypt hashes
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(pool))
//	checker.AddCheck("cache", handlers.NewCacheCheck(redisClient))
//	checker.AddCheck("platform_api", handlers.NewPlatformCheck(platformClient))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// # Platform Webhooks
//
// The IngestHandler interface turns platform activity pushes into
// progression commands, routed by event type:
//
//	ingest := handlers.NewPlatformIngestHandler()
//	ingest.Register("module.completed", moduleCompletedHandler)
//	ingest.Register("quiz.passed", quizPassedHandler)
//
//	err := ingest.HandlePlatformEvent(ctx, payload)
//
// The platform's event ID doubles as the ledger idempotency key, so a
// redelivered webhook is acknowledged without crediting XP twice.
//
// # Middleware
//
// The package provides several reusable middleware components:
//
//	// API key authentication (keys stored as bcrypt hashes)
//	auth := handlers.NewAPIKeyAuth("X-API-Key", []string{hash})
//	protected := auth.Middleware(myHandler)
//
//	// Security headers
//	secure := handlers.SecurityHeadersMiddleware(myHandler)
//
//	// Chain multiple middleware
//	handler := handlers.ChainHandler(
//	    myHandler,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    auth.Middleware,
//	)
package handlers
