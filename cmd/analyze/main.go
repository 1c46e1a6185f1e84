// Command analyze requests an optimal-time analysis for one user and waits for it,
// the same way the dashboard polls: every 5s, up to two minutes.
//
//	analyze -user 3f0c... -tz Europe/Berlin
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pagecraft/backend/internal/app"
	"github.com/pagecraft/backend/internal/config"
	"github.com/pagecraft/backend/internal/db"
	"github.com/pagecraft/backend/internal/events"
	"github.com/pagecraft/backend/internal/jobs"
	"github.com/pagecraft/backend/internal/logger"
	"github.com/pagecraft/backend/internal/models"
	"github.com/pagecraft/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	userFlag := flag.String("user", "", "user id to analyze")
	tz := flag.String("tz", "UTC", "IANA time zone the slots are expressed in")
	showSlots := flag.Bool("slots", true, "print the resulting optimal times")
	flag.Parse()

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "analyze: -user must be a uuid")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.New(cfg)
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, 2, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	svc := app.NewServices(cfg, pool, app.NewQueue(cfg, rdb), events.NewRedisPublisher(rdb, log), nil, log)

	// With the memory queue there is no worker to pick the job up; run it here.
	if cfg.JobQueue == config.QueueMemory {
		go svc.NewRunner(cfg, log).Run(ctx)
	}

	accepted, err := svc.Analysis.RequestAnalysis(ctx, userID, *tz)
	if err != nil {
		var insufficient *services.InsufficientDataError
		if errors.As(err, &insufficient) {
			fmt.Printf("not enough data: %s\n", insufficient.Error())
			os.Exit(1)
		}
		log.Fatal("request analysis", zap.Error(err))
	}
	if accepted.AlreadyRunning {
		fmt.Println("an analysis is already running, waiting for it")
	}
	if accepted.Warning != "" {
		fmt.Println("warning:", accepted.Warning)
	}

	job, err := svc.Analysis.WaitForJob(ctx, userID, accepted.Job.ID, jobs.DefaultPollConfig)
	switch {
	case errors.Is(err, jobs.ErrStillProcessing):
		fmt.Printf("job %s still processing (status %s), check again later\n", job.ID, job.Status)
		return
	case err != nil:
		log.Fatal("wait for analysis", zap.Error(err))
	}

	printJob(job)
	if job.Status != models.AnalysisStatusCompleted {
		os.Exit(1)
	}
	if *showSlots {
		slots, err := svc.Analysis.GetOptimalTimes(ctx, userID, nil)
		if err != nil {
			log.Fatal("load optimal times", zap.Error(err))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(slots)
	}
}

func printJob(job *models.AnalysisJob) {
	fmt.Printf("job %s: %s\n", job.ID, job.Status)
	fmt.Printf("  events analyzed: %d\n", job.EventsAnalyzed)
	fmt.Printf("  slots produced:  %d\n", job.SlotsProduced)
	if job.Partial {
		fmt.Println("  partial: analysis hit its deadline before every platform was ranked")
	}
	if job.Error != nil {
		fmt.Printf("  error: %s\n", *job.Error)
	}
}
