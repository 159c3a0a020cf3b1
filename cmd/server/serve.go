package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"math-tutor-backend/config"
	"math-tutor-backend/dao"
	"math-tutor-backend/router"
	"math-tutor-backend/service/gateway"
	"math-tutor-backend/service/mq"
	"math-tutor-backend/service/storage"
	"math-tutor-backend/service/summarization"
	"math-tutor-backend/service/tutor"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	dispatcherMQ    = "mq"
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the summary workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		return serve(cmd.Context())
	},
}

// newSummarizer 按配置创建摘要器，配置了 Redis 时使用分布式锁
func newSummarizer(cfg *config.Config, gw gateway.Gateway) *summarization.Summarizer {
	var locker summarization.Locker = summarization.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = summarization.NewRedisLocker(client)
	}

	return summarization.NewSummarizer(gw,
		summarization.WithModel(cfg.Model.SummaryModel),
		summarization.WithLanguage(cfg.Tutor.Language),
		summarization.WithLocker(locker, cfg.Summarizer.LockTTL),
		summarization.WithWorkers(cfg.Summarizer.Workers, cfg.Summarizer.QueueSize),
	)
}

func serve(ctx context.Context) error {
	cfg := config.Cfg
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := initDB(); err != nil {
		return err
	}
	if err := dao.Migrate(dao.DB); err != nil {
		return err
	}

	gw, err := gateway.New(cfg.Model)
	if err != nil {
		return err
	}
	summarizer := newSummarizer(cfg, gw)
	summarization.SummarizerInstance = summarizer

	g, gctx := errgroup.WithContext(ctx)

	var dispatcher tutor.SummaryDispatcher = summarizer
	if cfg.Summarizer.Dispatcher == dispatcherMQ {
		if err := mq.Init(cfg.MQ.NameServer); err != nil {
			return err
		}
		if err := mq.Run(summarizer.HandleSummaryMessage); err != nil {
			return err
		}
		defer mq.Shutdown()
		dispatcher = mq.SummaryDispatcher{}
	} else {
		g.Go(func() error {
			summarizer.Run(gctx)
			return nil
		})
	}

	opts := []tutor.Option{tutor.WithLanguage(cfg.Tutor.Language)}
	if cfg.OSS.BucketName != "" {
		opts = append(opts, tutor.WithDocumentLinker(storage.NewExerciseDocuments(cfg.OSS)))
	}
	tutor.ServiceInstance = tutor.NewService(gw, dispatcher, opts...)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router.Register(),
	}

	g.Go(func() error {
		slog.Info("Starting HTTP server", "addr", server.Addr, "summary_dispatcher", cfg.Summarizer.Dispatcher)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down HTTP server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
