package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	grpc_pkg "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. 載入設定
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// 2. 初始化帳本
	ledger, closeLedger, err := openLedger(cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	// 3. 初始化 UseCase
	registry := usecase.NewAccountRegistry(ledger, log,
		usecase.WithMinOpeningBalance(cfg.Accounts.MinOpening()),
		usecase.WithNumberAttempts(cfg.Accounts.NumberAttempts),
	)
	engine := usecase.NewTransactionEngine(ledger, registry, log,
		usecase.WithRejectionAudit(cfg.Ledger.AuditRejections),
	)
	reconciler := usecase.NewReconciler(ledger, log)
	core := usecase.NewCoreUseCase(ledger, registry, engine, reconciler)

	// 4. 對帳排程
	if cfg.Reconcile.Schedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Reconcile.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := core.Reconcile(ctx); err != nil {
				log.Error("scheduled reconcile failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule reconcile: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info("reconcile scheduled", zap.String("schedule", cfg.Reconcile.Schedule))
	}

	// 5. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	s := grpc.NewServer(grpc.UnaryInterceptor(grpc_pkg.ServerLoggingInterceptor(log.Named("rpc"))))
	grpc_adapter.RegisterLedgerServiceServer(s, grpc_adapter.NewGrpcServer(core, log))
	reflection.Register(s)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting gRPC server", zap.String("addr", cfg.Server.Addr), zap.String("backend", string(cfg.Ledger.Backend)))
		serveErr <- s.Serve(lis)
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.Stringer("signal", sig))
		s.GracefulStop()
		return nil
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}
}

// openLedger 依 backend 建立帳本與對應的關閉函數
func openLedger(cfg config.Config, log *zap.Logger) (usecase.Ledger, func(), error) {
	switch cfg.Ledger.Backend {
	case config.BackendMySQL:
		client, err := mysql.NewClient(cfg.MySQL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		ledger := mysql_adapter.NewMySQLLedger(client, cfg.Ledger.LockTimeout)
		if err := ledger.AutoMigrate(context.Background()); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("migrate mysql: %w", err)
		}
		log.Info("connected to mysql", zap.String("host", cfg.MySQL.Host), zap.String("db", cfg.MySQL.DBName))
		return ledger, func() { _ = client.Close() }, nil

	default:
		w, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open wal: %w", err)
		}
		ledger, err := memory_adapter.NewMutexLedger(w, memory_adapter.WithLockTimeout(cfg.Ledger.LockTimeout))
		if err != nil {
			_ = w.Close()
			return nil, nil, fmt.Errorf("recover ledger: %w", err)
		}
		accounts, err := ledger.LoadAllAccounts(context.Background())
		if err != nil {
			_ = w.Close()
			return nil, nil, err
		}
		log.Info("recovered ledger from wal", zap.String("path", cfg.Ledger.WALPath), zap.Int("accounts", len(accounts)))
		return ledger, func() { _ = w.Close() }, nil
	}
}
