// Package main implements a standalone mock CDN server for local development
// and E2E testing. It reuses the in-process test server and exposes it on a
// fixed port, so botgate can be pointed at it with CDN_API_URL.
package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fenceline/botgate/internal/testutil/mockcdn"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	mock := mockcdn.New()
	defer mock.Close()

	// Re-expose the httptest handler on a stable, configurable port.
	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: mock.Config.Handler,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down mockcdn server...")
		//nolint:errcheck
		httpServer.Close()
	}()

	log.Printf("mockcdn listening on :%s", port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("mockcdn server failed: %v", err)
	}
}
