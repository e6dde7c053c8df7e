package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rl1809/auction/internal/adapter/clock"
	"github.com/rl1809/auction/internal/adapter/storage"
	"github.com/rl1809/auction/internal/core/domain"
	"github.com/rl1809/auction/internal/core/service"
	"github.com/rl1809/auction/pkg/logger"
)

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "redis address")
	bidders := flag.Int("bidders", 50, "concurrent bidders")
	maxRetries := flag.Int("retries", service.DefaultMaxRetries, "conditional write retries per bid")
	step := flag.Float64("step", 1, "amount between consecutive bidders")
	flag.Parse()

	logger.Init("development", "warn")
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, PoolSize: 100})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	repo := storage.NewRedisAdapter(rdb)
	clk := clock.NewManual(time.Now().UTC())
	svc := service.NewAuctionService(repo, clk, nil, *maxRetries)

	item, err := svc.CreateAuction(ctx, service.CreateAuctionInput{
		Seller:      "stress-seller",
		ItemName:    "Stress test lot",
		Description: "concurrent bid arbitration",
		StartingBid: decimal.NewFromInt(10),
		ClosingTime: clk.Now().Add(time.Hour),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auction")
	}

	// Counters
	var accepted, tooLow, contended, failed atomic.Int32
	var (
		mu      sync.Mutex
		highest = decimal.Zero
	)

	// Spawn concurrent bidders, bidder i offers 11 + i*step
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *bidders; i++ {
		amount, ok := domain.AmountFromFloat(11 + float64(i)*(*step))
		if !ok {
			log.Fatal().Float64("step", *step).Msg("bid amount is not a finite number")
		}

		wg.Add(1)
		go func(n int, amount decimal.Decimal) {
			defer wg.Done()

			res, err := svc.PlaceBid(ctx, item.ID, fmt.Sprintf("bidder-%d", n), amount)
			switch {
			case errors.Is(err, domain.ErrContention):
				contended.Add(1)
			case err != nil:
				failed.Add(1)
			case res.Outcome == domain.DecisionAccepted:
				accepted.Add(1)
				mu.Lock()
				if amount.GreaterThan(highest) {
					highest = amount
				}
				mu.Unlock()
			case res.Outcome == domain.DecisionRejectedTooLow:
				tooLow.Add(1)
			}
		}(i, amount)
	}

	wg.Wait()
	elapsed := time.Since(start)

	final, err := repo.Get(ctx, item.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load final state")
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Bidders:          %d\n", *bidders)
	fmt.Printf("Accepted:         %d\n", accepted.Load())
	fmt.Printf("Too low:          %d\n", tooLow.Load())
	fmt.Printf("Contention:       %d\n", contended.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Final bid:        %s by %s (version %d)\n",
		final.CurrentBid.StringFixed(domain.MonetaryPrecision), final.HighestBidder, final.Version)
	fmt.Println("==========================================")

	ok := true
	if !final.CurrentBid.Equal(highest) {
		fmt.Printf("FAIL: final bid %s is not the highest accepted bid %s\n", final.CurrentBid, highest)
		ok = false
	}
	if final.Version != int64(accepted.Load()) {
		fmt.Printf("FAIL: version %d does not match %d accepted bids\n", final.Version, accepted.Load())
		ok = false
	}
	if failed.Load() > 0 {
		ok = false
	}

	if !ok {
		os.Exit(1)
	}
	fmt.Println("PASS: every accepted bid raised the price, final state holds the highest")
}
