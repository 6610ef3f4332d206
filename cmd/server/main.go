package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ganttservice/contracts/mq"
	"ganttservice/internal/config"
	"ganttservice/internal/handler"
	"ganttservice/internal/httpserver"
	"ganttservice/internal/mqhandler"
	"ganttservice/internal/repository"
	"ganttservice/internal/service"
	"ganttservice/pkg/db"
	"ganttservice/pkg/logger"
	mqlib "ganttservice/pkg/mq"
	redislib "ganttservice/pkg/redis"
	"ganttservice/pkg/util"
)

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg := config.Load()

	dbPool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if err := db.EnsureSchema(context.Background(), dbPool, log); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	rdb := redislib.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	publisher, err := mqlib.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to create publisher", zap.Error(err))
	}
	defer publisher.Close()

	taskRepo := repository.NewTaskRepository(dbPool, log)
	snapshotRepo := repository.NewSnapshotRepository(dbPool, log)
	holidayRepo := repository.NewHolidayRepository(dbPool, log)

	lock := util.NewProjectLock(rdb, 0)
	deduper := util.NewDeduper(rdb, 24*time.Hour)

	svc := service.NewGanttService(taskRepo, snapshotRepo, holidayRepo, publisher, rdb, lock, log)

	// project.deleted 消费者：项目删除后清理该项目的所有甘特数据
	consumer, err := mqlib.NewConsumer(cfg.MQ.URL, "gantt.project.deleted.q", mq.RoutingProjectDeleted, log)
	if err != nil {
		log.Fatal("Failed to create consumer", zap.Error(err))
	}
	projectDeleted := mqhandler.NewProjectDeletedHandler(svc, deduper, log)
	consumer.SetHandler(projectDeleted.Handle)

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			log.Error("Consumer stopped", zap.Error(err))
		}
	}()

	ganttHandler := handler.NewGanttHandler(svc, log)
	router := httpserver.NewRouter(ganttHandler, dbPool, log, publisher, consumer)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("Gantt service starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down gantt service")

	consumer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Gantt service stopped")
}
