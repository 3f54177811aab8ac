// Command loadgen hammers an in-process engine with concurrent orders on
// one item and checks that stock depletes exactly, never below zero.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rapeepat/shopflow/internal/adapter/storage"
	"github.com/rapeepat/shopflow/internal/core/catalog"
	"github.com/rapeepat/shopflow/internal/core/domain"
	"github.com/rapeepat/shopflow/internal/core/lock"
	"github.com/rapeepat/shopflow/internal/core/resolver"
	"github.com/rapeepat/shopflow/internal/core/service"
	"github.com/rapeepat/shopflow/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	tab := storage.NewMemoryStore()
	tab.Seed(port.TableCatalog, [][]string{
		{"Ice", "12", "20", "bag", fmt.Sprint(initialStock), "frozen", "ICE-001"},
	})

	store := catalog.NewStore(tab)
	if err := store.Init(ctx); err != nil {
		logger.Error("init store", slog.Any("error", err))
		os.Exit(1)
	}
	locks := lock.NewManager(0, 0, 0, logger)
	res := resolver.New(store, nil)
	svc := service.NewOrderService(store, res, locks, nil, logger, totalRequests)
	defer svc.Close()

	// Drain post-commit events in background
	go func() {
		for range svc.Events() {
		}
	}()

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			_, err := svc.CreateOrder(ctx, service.OrderRequest{
				Customer: fmt.Sprintf("customer-%d", id),
				Lines:    []domain.OrderLineRequest{{Query: "ice", Quantity: 1}},
			})
			if err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=======================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: exactly %d orders succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	entry, ok, err := store.EntryByKey(ctx, domain.ResourceKey("Ice", "bag"))
	if err != nil || !ok {
		fmt.Printf("FAIL: could not re-read catalog entry: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Final Stock: %d\n", entry.Stock)

	if entry.Stock == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected stock 0, got %d\n", entry.Stock)
	}
}
