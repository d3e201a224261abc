// Package main provides a manual integration test utility for the Redis
// backed review infrastructure.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/data"
	"github.com/cuongccna/ProjectBotTrading/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// Manual integration test for the Redis pieces of the review stack:
// violation counter, signal snapshot store and notification queue.
// Run against a local Redis instance with: go run tests/test-review-redis-unit.go

func main() {
	// Create logger
	logger := log.NewStdLogger(os.Stdout)

	fmt.Println("==========================================")
	fmt.Println("Review Redis Infrastructure Integration Test")
	fmt.Println("==========================================")
	fmt.Println()

	fmt.Println("Step 1: Connect to Redis")
	fmt.Println("------------------------------------------")

	rdb := redis.NewClient(&redis.Options{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("✗ Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Connected to Redis successfully")
	fmt.Println()

	const reviewerID = "test-reviewer-99999"
	const queueName = "test:review:notifications"

	cache := data.NewCacheClient(rdb)
	counter := data.NewViolationCounter(rdb, logger)
	signals := data.NewSignalStore(cache, logger)
	notifier := data.NewNotifier(rdb, &conf.Review{NotificationQueue: queueName}, logger)

	// Clean up test data
	defer func() {
		fmt.Println()
		fmt.Println("==========================================")
		fmt.Println("Cleanup")
		fmt.Println("==========================================")
		rdb.Del(ctx, data.BuildCacheKey(data.CacheKeyViolations, reviewerID))
		rdb.Del(ctx, data.BuildCacheKey(data.CacheKeySignal, "latest"))
		rdb.Del(ctx, queueName)
		fmt.Println("✓ Cleaned up test data")
	}()

	// Test Violation Counter
	fmt.Println("Step 2: Test Violation Counter")
	fmt.Println("------------------------------------------")
	fmt.Println()

	counterPassed := 0

	initial, err := counter.Count(ctx, reviewerID)
	if err == nil && initial == 0 {
		fmt.Println("  Fresh reviewer: ✓ count is 0 (expected)")
		counterPassed++
	} else {
		fmt.Printf("  Fresh reviewer: ✗ FAIL - count=%d err=%v (expected 0)\n", initial, err)
	}

	for i := 1; i <= 3; i++ {
		count, err := counter.Increment(ctx, reviewerID)
		if err == nil && count == int64(i) {
			fmt.Printf("  Increment %d: ✓ count is %d (expected)\n", i, count)
			counterPassed++
		} else {
			fmt.Printf("  Increment %d: ✗ FAIL - count=%d err=%v (expected %d)\n", i, count, err, i)
		}
	}

	final, err := counter.Count(ctx, reviewerID)
	if err == nil && final == 3 {
		fmt.Println("  Read back: ✓ count is 3 (expected)")
		counterPassed++
	} else {
		fmt.Printf("  Read back: ✗ FAIL - count=%d err=%v (expected 3)\n", final, err)
	}

	if counterPassed == 5 {
		fmt.Println()
		fmt.Println("✓ Violation counter works correctly!")
	} else {
		fmt.Println()
		fmt.Printf("✗ Violation counter test failed: %d/5 passed\n", counterPassed)
	}
	fmt.Println()

	// Test Signal Snapshot Store
	fmt.Println("Step 3: Test Signal Snapshot Store")
	fmt.Println("------------------------------------------")
	fmt.Println()

	signalPassed := 0

	empty, err := signals.Latest(ctx)
	if err == nil && empty == nil {
		fmt.Println("  Empty store: ✓ returns nil snapshot (expected)")
		signalPassed++
	} else {
		fmt.Printf("  Empty store: ✗ FAIL - snap=%v err=%v (expected nil, nil)\n", empty, err)
	}

	snap := &model.SignalSnapshot{
		TakenAt:    time.Now().UTC().Truncate(time.Second),
		Drawdown:   &model.DrawdownSignal{Daily: 0.07, Weekly: 0.11},
		LossStreak: &model.LossStreakSignal{ConsecutiveLosses: 4},
	}
	if err := signals.SaveLatest(ctx, snap); err == nil {
		fmt.Println("  Save snapshot: ✓ stored")
		signalPassed++
	} else {
		fmt.Printf("  Save snapshot: ✗ FAIL - %v\n", err)
	}

	loaded, err := signals.Latest(ctx)
	if err == nil && loaded != nil &&
		loaded.Drawdown != nil && loaded.Drawdown.Daily == 0.07 &&
		loaded.LossStreak != nil && loaded.LossStreak.ConsecutiveLosses == 4 {
		fmt.Println("  Load snapshot: ✓ round-trips drawdown and loss streak")
		signalPassed++
	} else {
		fmt.Printf("  Load snapshot: ✗ FAIL - snap=%+v err=%v\n", loaded, err)
	}

	if signalPassed == 3 {
		fmt.Println()
		fmt.Println("✓ Signal snapshot store works correctly!")
	} else {
		fmt.Println()
		fmt.Printf("✗ Signal store test failed: %d/3 passed\n", signalPassed)
	}
	fmt.Println()

	// Test Notification Queue
	fmt.Println("Step 4: Test Notification Queue")
	fmt.Println("------------------------------------------")
	fmt.Println()

	notifyPassed := 0

	intents := []*model.NotificationIntent{
		{EventID: "ev-test-1", TriggerKind: "drawdown_threshold", Priority: "high", CreatedAt: time.Now().UTC()},
		{EventID: "ev-test-2", TriggerKind: "loss_streak", Priority: "normal", CreatedAt: time.Now().UTC()},
	}
	for _, intent := range intents {
		notifier.PushIntent(ctx, intent)
	}

	// Delivery is async through a buffered channel, give the worker a moment
	time.Sleep(500 * time.Millisecond)

	length, err := rdb.LLen(ctx, queueName).Result()
	if err == nil && length == 2 {
		fmt.Println("  Queue length: ✓ 2 intents delivered (expected)")
		notifyPassed++
	} else {
		fmt.Printf("  Queue length: ✗ FAIL - len=%d err=%v (expected 2)\n", length, err)
	}

	// LPUSH prepends, so the oldest intent is at the tail
	raw, err := rdb.RPop(ctx, queueName).Result()
	if err == nil {
		var got model.NotificationIntent
		if err := json.Unmarshal([]byte(raw), &got); err == nil && got.EventID == "ev-test-1" && got.Priority == "high" {
			fmt.Printf("  Oldest intent: ✓ event=%s priority=%s (expected)\n", got.EventID, got.Priority)
			notifyPassed++
		} else {
			fmt.Printf("  Oldest intent: ✗ FAIL - payload=%s err=%v\n", raw, err)
		}
	} else {
		fmt.Printf("  Oldest intent: ✗ FAIL - %v\n", err)
	}

	if notifyPassed == 2 {
		fmt.Println()
		fmt.Println("✓ Notification queue works correctly!")
	} else {
		fmt.Println()
		fmt.Printf("✗ Notification queue test failed: %d/2 passed\n", notifyPassed)
	}
	fmt.Println()

	// Summary
	fmt.Println("==========================================")
	fmt.Println("Test Summary")
	fmt.Println("==========================================")

	totalTests := 5 + 3 + 2
	totalPassed := counterPassed + signalPassed + notifyPassed

	fmt.Printf("Total Tests: %d\n", totalTests)
	fmt.Printf("Tests Passed: %d\n", totalPassed)
	fmt.Printf("Tests Failed: %d\n", totalTests-totalPassed)
	fmt.Println()

	if totalPassed == totalTests {
		fmt.Println("✓ All review infrastructure tests completed successfully!")
		os.Exit(0)
	} else {
		fmt.Println("✗ Some tests failed. Please review the output above.")
		os.Exit(1)
	}
}
