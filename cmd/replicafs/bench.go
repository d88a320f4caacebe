package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"replicafs/pkg/client"
)

const (
	defaultBenchURL      = "http://127.0.0.1:8080"
	defaultBenchCount    = 10
	defaultBenchSize     = "1KiB"
	defaultBenchParallel = 4
	separatorLineLength  = 80
)

type benchConfig struct {
	url        string
	credential string
	count      int
	size       uint64
	parallel   int
	keep       bool
}

// operationTimes collects latencies per operation.
type operationTimes struct {
	mu    sync.Mutex
	times map[string][]time.Duration
}

func (o *operationTimes) add(op string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.times[op] = append(o.times[op], d)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Exercise a running gateway",
		Long: `Upload random files to a gateway, read them back, verify them and delete
them again, then print latency statistics per operation.`,
		RunE: runBench,
	}

	flags := cmd.Flags()
	flags.String("url", defaultBenchURL, "gateway URL")
	flags.String("credential", "", "credential for encrypted providers")
	flags.Int("count", defaultBenchCount, "number of files")
	flags.String("size", defaultBenchSize, "size of each file (e.g. 4KiB, 1MB)")
	flags.Int("parallel", defaultBenchParallel, "concurrent files in flight")
	flags.Bool("keep", false, "do not delete the files afterwards")
	return cmd
}

func runBench(cmd *cobra.Command, _ []string) error {
	if err := setupLogging(cmd); err != nil {
		return err
	}

	flags := cmd.Flags()
	cfg := benchConfig{}
	cfg.url, _ = flags.GetString("url")
	cfg.credential, _ = flags.GetString("credential")
	cfg.count, _ = flags.GetInt("count")
	cfg.parallel, _ = flags.GetInt("parallel")
	cfg.keep, _ = flags.GetBool("keep")

	sizeText, _ := flags.GetString("size")
	size, err := humanize.ParseBytes(sizeText)
	if err != nil {
		return fmt.Errorf("invalid --size: %w", err)
	}
	cfg.size = size
	if cfg.count < 1 || cfg.parallel < 1 {
		return fmt.Errorf("--count and --parallel must be positive")
	}

	times, err := bench(contextOrBackground(cmd), client.New(cfg.url, cfg.credential), cfg)
	printSummary(cmd, cfg, times)
	return err
}

func bench(ctx context.Context, c *client.Client, cfg benchConfig) (*operationTimes, error) {
	times := &operationTimes{times: make(map[string][]time.Duration)}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(cfg.parallel)
	for range cfg.count {
		group.Go(func() error {
			return benchOne(ctx, c, cfg, times)
		})
	}
	return times, group.Wait()
}

func benchOne(ctx context.Context, c *client.Client, cfg benchConfig, times *operationTimes) error {
	data := make([]byte, cfg.size)
	if _, err := rand.Read(data); err != nil {
		return err
	}
	name := "bench-" + uuid.NewString()

	start := time.Now()
	if _, err := c.Put(ctx, name, data); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	times.add("put", time.Since(start))

	start = time.Now()
	got, err := c.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("get %s: %w", name, err)
	}
	times.add("get", time.Since(start))
	if !bytes.Equal(got, data) {
		return fmt.Errorf("get %s: content mismatch", name)
	}

	if cfg.keep {
		return nil
	}
	start = time.Now()
	if _, err := c.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	times.add("delete", time.Since(start))
	return nil
}

func printSummary(cmd *cobra.Command, cfg benchConfig, times *operationTimes) {
	separator := strings.Repeat("=", separatorLineLength)

	cmd.Println(separator)
	cmd.Printf("replicafs bench: %d files of %s against %s\n", cfg.count, humanize.IBytes(cfg.size), cfg.url)
	cmd.Println(separator)

	for _, op := range []string{"put", "get", "delete"} {
		samples := times.times[op]
		if len(samples) == 0 {
			continue
		}
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

		var total time.Duration
		for _, d := range samples {
			total += d
		}
		cmd.Printf("%-8s n=%-5d avg=%-12s p50=%-12s p95=%-12s max=%s\n",
			op, len(samples), total/time.Duration(len(samples)),
			percentile(samples, 50), percentile(samples, 95), samples[len(samples)-1])
	}
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}
