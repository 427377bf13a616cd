package main // Entry point package

import (
	"log" // Logging library

	"github.com/joho/godotenv"    // .env file loader for local runs
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/quadrille/attribution/internal/attribution"
	"github.com/quadrille/attribution/internal/calendar"
	"github.com/quadrille/attribution/internal/config"
	"github.com/quadrille/attribution/internal/database"
	"github.com/quadrille/attribution/internal/handler"
	"github.com/quadrille/attribution/internal/rekey"
	"github.com/quadrille/attribution/internal/repository"
	"github.com/quadrille/attribution/internal/router"
	"github.com/quadrille/attribution/internal/scheduler"
	queue_publisher "github.com/quadrille/attribution/internal/service"
)

func main() {
	_ = godotenv.Load() // read .env when present; real env wins
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, running without scheduler lock and premium memoization")
	}

	sessions := repository.NewSessionRepo(db)
	applications := repository.NewApplicationRepo(db)
	selector := attribution.NewSelector(sessions, applications, calendar.NewMemo(rdb),
		cfg.Delays(), queue_publisher.PublishSessionAttributed)
	rekeyer := rekey.NewRekeyer(db)

	lock := scheduler.NewMutex(rdb) // shared by the loop and the admin triggers
	sched := scheduler.New(selector, rekeyer, lock, cfg.AttributionInterval, cfg.RekeyHour)
	sched.Start()
	defer sched.Stop()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAdmin(e, handler.NewAdminHandler(selector, rekeyer, lock))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil { // Start HTTP server
		log.Fatal(err)
	}
}
