package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	grpc_pkg "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/logger"
)

// 壓測: 兩個帳戶互相轉帳，結束後驗證總額守恆
func main() {
	target := flag.String("target", "localhost:50051", "ledger gRPC address")
	total := flag.Int("n", 100000, "number of transfers")
	concurrency := flag.Int("c", 200, "concurrent workers")
	amount := flag.String("amount", "1.00", "amount per transfer")
	verbose := flag.Bool("v", false, "log every call")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	log, err := logger.New(level, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log, *target, *total, *concurrency, *amount); err != nil {
		log.Fatal("load test failed", zap.Error(err))
	}
}

func run(log *zap.Logger, target string, total, concurrency int, rawAmount string) error {
	amount, err := domain.ParseAmount(rawAmount)
	if err != nil {
		return err
	}

	pool := grpc_pkg.NewPool(grpc_pkg.WithInterceptor(grpc_pkg.LoggingInterceptor(log.Named("rpc"))))
	defer func() { _ = pool.Close() }()
	conn, err := pool.GetConnection(target)
	if err != nil {
		return err
	}
	client := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	opening := amount.Mul(decimal.NewFromInt(int64(total)))
	a, err := client.OpenAccount(ctx, usecase.CreateAccountRequest{Kind: domain.AccountKindChecking, Currency: domain.CurrencyFCFA, InitialBalance: opening, OwnerRef: "loadtest-a"})
	if err != nil {
		return fmt.Errorf("open account a: %w", err)
	}
	b, err := client.OpenAccount(ctx, usecase.CreateAccountRequest{Kind: domain.AccountKindChecking, Currency: domain.CurrencyFCFA, InitialBalance: opening, OwnerRef: "loadtest-b"})
	if err != nil {
		return fmt.Errorf("open account b: %w", err)
	}
	log.Info("accounts opened", zap.String("a", a.Number), zap.String("b", b.Number))

	var (
		wg       sync.WaitGroup
		failures atomic.Int64
	)
	sem := make(chan struct{}, concurrency)
	start := time.Now()

	for i := 0; i < total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			src, dst := a.ID, b.ID
			if idx%2 == 1 {
				src, dst = dst, src
			}
			_, err := client.Transfer(ctx, usecase.TransferRequest{
				TransactionID:        uuid.New(),
				SourceAccountID:      src,
				DestinationAccountID: dst,
				Amount:               amount,
			})
			if err != nil {
				failures.Add(1)
				if idx%1000 == 0 {
					log.Warn("transfer failed", zap.Int("idx", idx), zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	balanceA, err := client.Balance(ctx, a.ID)
	if err != nil {
		return err
	}
	balanceB, err := client.Balance(ctx, b.ID)
	if err != nil {
		return err
	}
	sum := balanceA.Add(balanceB)
	expected := opening.Add(opening)

	log.Info("load test finished",
		zap.Int("requests", total),
		zap.Int64("failures", failures.Load()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("tps", float64(total)/elapsed.Seconds()),
		zap.String("balance_a", balanceA.StringFixed(domain.AmountScale)),
		zap.String("balance_b", balanceB.StringFixed(domain.AmountScale)),
	)
	if !sum.Equal(expected) {
		return fmt.Errorf("money not conserved: got %s want %s", sum, expected)
	}
	return nil
}
