// Package benchmark is the write-throughput harness: it drives
// AddBlockData against a store the way an ingest worker would and reports
// blocks per second. It validates the concurrency model under load and is
// not part of the store contract.
package benchmark

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/veilscan/fogstore/internal/config"
	"github.com/veilscan/fogstore/internal/database"
	"github.com/veilscan/fogstore/internal/logging"
)

type Result struct {
	Blocks   int
	Outputs  int
	Duration time.Duration
}

func (r Result) BlocksPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Blocks) / r.Duration.Seconds()
}

// Run ingests numBlocks synthetic blocks of outputsPerBlock records each
// through a fresh ingress key and primary invocation.
func Run(ctx context.Context, store database.RecoveryDB, numBlocks, outputsPerBlock int) (Result, error) {
	logging.L.Info().Msgf("Starting addBlockData benchmark: %d blocks, %d outputs each", numBlocks, outputsPerBlock)

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return Result{}, err
	}

	const startBlock = 0
	if err := store.RegisterIngressKey(ctx, key, startBlock); err != nil {
		return Result{}, err
	}
	invocationID, err := store.RegisterInvocation(ctx, key, startBlock)
	if err != nil {
		return Result{}, err
	}
	if err := store.SetPrimary(ctx, invocationID); err != nil {
		return Result{}, err
	}

	start := time.Now()
	totalOutputs := 0
	for block := 0; block < numBlocks; block++ {
		outputs := syntheticOutputs(uint64(block), outputsPerBlock)
		totalOutputs += len(outputs)

		err := database.WithRetry(ctx, config.RetryAttempts, func(ctx context.Context) error {
			_, err := store.AddBlockData(ctx, key, invocationID, uint64(block), outputs, nil)
			return err
		})
		if err != nil {
			return Result{}, err
		}
		if block > 0 && block%1000 == 0 {
			logging.L.Debug().Int("block", block).Msg("benchmark progress")
		}
	}

	res := Result{Blocks: numBlocks, Outputs: totalOutputs, Duration: time.Since(start)}
	logging.L.Info().
		Int("blocks", res.Blocks).
		Int("outputs", res.Outputs).
		Dur("total_duration", res.Duration).
		Float64("blocks_per_second", res.BlocksPerSecond()).
		Msg("addBlockData benchmark completed")
	return res, nil
}

func syntheticOutputs(blockIndex uint64, n int) []*database.ETxOutRecord {
	out := make([]*database.ETxOutRecord, 0, n)
	for i := 0; i < n; i++ {
		searchKey := make([]byte, 16)
		payload := make([]byte, 64)
		_, _ = rand.Read(searchKey)
		_, _ = rand.Read(payload)
		out = append(out, &database.ETxOutRecord{
			SearchKey:  searchKey,
			Payload:    payload,
			BlockIndex: blockIndex,
		})
	}
	return out
}
