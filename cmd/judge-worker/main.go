// Command judge-worker is the process entrypoint: it loads configuration,
// builds the sandbox stack, and runs the single-threaded cooperative
// consume/judge/publish loop until signaled to stop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/fouguai/judgeworker/internal/config"
	"github.com/fouguai/judgeworker/internal/judge/cgroup"
	"github.com/fouguai/judgeworker/internal/judge/datapack"
	"github.com/fouguai/judgeworker/internal/judge/driver"
	"github.com/fouguai/judgeworker/internal/judge/profile"
	"github.com/fouguai/judgeworker/internal/judge/runner"
	"github.com/fouguai/judgeworker/internal/judge/worker"
	"github.com/fouguai/judgeworker/internal/logging"
	"github.com/fouguai/judgeworker/internal/mq"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		return 1
	}

	workerID := uuid.NewString()
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Worker: workerID}); err != nil {
		os.Stderr.WriteString("init logging: " + err.Error() + "\n")
		return 1
	}
	defer logging.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		logging.Error(ctx, "create work dir failed", zap.Error(err))
		return 1
	}

	var controller cgroup.Controller
	if cfg.EnableCgroup {
		controller = cgroup.NewController(cfg.CgroupRoot)
	} else {
		controller = cgroup.Disabled()
	}

	engine := runner.NewEngine(cfg.SandboxInit, controller)

	jdriver := &driver.Driver{
		Profiles: profile.Default(),
		Runner:   engine,
		DataDir:  cfg.DataDir,
		WorkDir:  cfg.WorkDir,
	}

	queue, err := mq.NewKafkaQueue(mq.KafkaConfig{
		Brokers:  []string{cfg.BrokerAddr()},
		ClientID: "judge-worker-" + workerID,
	})
	if err != nil {
		logging.Error(ctx, "build broker client failed", zap.Error(err))
		return 1
	}
	defer queue.Close()

	if err := queue.Ping(ctx); err != nil {
		logging.Error(ctx, "broker connection failed at startup", zap.Error(err))
		return 1
	}

	w := &worker.Worker{
		Driver:          jdriver,
		Queue:           queue,
		SubmissionQueue: cfg.SubmissionQueue,
		ResultQueue:     cfg.ResultQueue,
		ConsumerGroup:   cfg.ConsumerGroup,
	}

	if cfg.DataPackSyncEnabled {
		minioClient, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		})
		if err != nil {
			logging.Error(ctx, "build minio client failed", zap.Error(err))
			return 1
		}
		w.DataPackSync = datapack.New(cfg.DataDir, cfg.MinIOBucket, minioClient)
	}

	logging.Info(ctx, "judge-worker starting",
		zap.String("worker_id", workerID),
		zap.String("submission_queue", cfg.SubmissionQueue),
		zap.String("result_queue", cfg.ResultQueue),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	select {
	case <-ctx.Done():
		logging.Info(ctx, "shutdown signal received")
		if err := w.Stop(); err != nil {
			logging.Warn(ctx, "worker stop failed", zap.Error(err))
		}
		return 0
	case err := <-errCh:
		if err != nil {
			logging.Error(ctx, "worker loop exited with error", zap.Error(err))
			return 1
		}
		return 0
	}
}
