// Command catalog-ingest bulk-loads the product catalog from gzipped supplier
// export shards. Each shard is a JSON-lines file with one product per line.
// Shards may overlap: the same SKU can appear in several exports, and shard
// order is precedence order, so a SKU is loaded from the earliest shard that
// carries it. Bloom filters keep the cross-shard dedup memory-bounded even for
// catalogs with hundreds of millions of rows.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/livemart/marketplace/internal/storage/postgres"
)

const (
	bloomCapacity = 100_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

// shardProduct is one line of a supplier export shard.
type shardProduct struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int64           `json:"stock"`
	IsProxy  bool            `json:"isProxy"`
	Category string          `json:"category"`
	ImageURL string          `json:"imageUrl"`
}

func main() {
	var (
		dataDir     string
		numShards   int
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog-shardN.gz files")
	flag.IntVar(&numShards, "shards", 3, "number of shard files to load")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, numShards, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir string, numShards int, databaseURL string) error {
	files := make([]string, numShards)
	for i := range numShards {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("catalog-shard%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter of SKUs per shard, concurrently. The
	// filters let pass 2 detect cross-shard duplicates without holding every
	// SKU in memory.
	slog.Info("pass 1: building SKU filters", slog.Int("shards", numShards))

	filters, err := buildSKUFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build SKU filters")
	}

	// Pass 2: load shards in precedence order, skipping SKUs claimed by an
	// earlier shard. A bloom false positive only drops a duplicate candidate
	// from a later shard, never a SKU's sole occurrence.
	slog.Info("pass 2: loading shards")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	for i, f := range files {
		if err := loadShard(ctx, pool, i, f, filters); err != nil {
			return errors.Wrapf(err, "load shard %d", i+1)
		}
	}

	return nil
}

// buildSKUFilters creates one bloom filter per shard file, concurrently.
func buildSKUFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForShard(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForShard(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamShard(ctx, path, func(p shardProduct) error {
			filter.AddString(p.ID)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("shard", idx+1),
					slog.Uint64("products", count),
				)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "build filter for shard %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("shard", idx+1),
			slog.Uint64("total_products", count),
		)

		filters[idx] = filter
		return nil
	}
}

const upsertProductSQL = `
INSERT INTO products (id, name, price, stock, is_proxy, category, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	price = EXCLUDED.price,
	stock = EXCLUDED.stock,
	is_proxy = EXCLUDED.is_proxy,
	category = EXCLUDED.category,
	image_url = EXCLUDED.image_url`

// loadShard streams one shard and upserts every product whose SKU is not
// already claimed by an earlier (higher precedence) shard.
func loadShard(ctx context.Context, pool *pgxpool.Pool, idx int, path string, filters []*bloom.BloomFilter) error {
	var loaded, skipped uint64

	if err := streamShard(ctx, path, func(p shardProduct) error {
		for j := range idx {
			if filters[j].TestString(p.ID) {
				skipped++
				return nil
			}
		}

		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.Stock, p.IsProxy, p.Category, p.ImageURL,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		loaded++
		if loaded%progressEvery == 0 {
			slog.Info("pass 2 progress",
				slog.Int("shard", idx+1),
				slog.Uint64("loaded", loaded),
			)
		}
		return nil
	}); err != nil {
		return err
	}

	slog.Info("pass 2 complete",
		slog.Int("shard", idx+1),
		slog.Uint64("loaded", loaded),
		slog.Uint64("skipped", skipped),
	)

	return nil
}

// streamShard opens a gzip-compressed JSON-lines file and calls fn for each
// decoded product. Blank lines are skipped.
func streamShard(ctx context.Context, path string, fn func(p shardProduct) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var p shardProduct
		if err := json.Unmarshal(line, &p); err != nil {
			return errors.Wrapf(err, "decode product line in %s", path)
		}
		if err := fn(p); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
