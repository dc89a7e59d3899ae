// README: Entry point; loads config, wires services, starts HTTP server and the background sweeper.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"tidyhome/internal/app"
	"tidyhome/internal/config"
	httptransport "tidyhome/internal/http"
	"tidyhome/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Sweeper.Start(ctx); err != nil {
		log.Error("sweeper start failed", "error", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Homes:        a.Homes,
		Appointments: a.Appointment,
		Assignments:  a.Assignment,
		Ranking:      a.Location,
		Log:          log,
	})

	server := httptransport.NewServer(cfg.HTTP.Addr, router, log)
	if err := server.Run(ctx); err != nil {
		log.Error("http server failed", "error", err)
		os.Exit(1)
	}
}
