// Command seed-db provisions a development database: it runs migrations,
// upserts the product catalog from a JSON file, and creates a demo user with
// an access token so the API can be exercised immediately.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/livemart/marketplace/internal/handler"
	"github.com/livemart/marketplace/internal/storage/postgres"
)

type productJSON struct {
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
		databaseURL  string
		productsFile string
		userEmail    string
		userName     string
		token        string
		tokenPepper  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&userEmail, "user-email", "demo@example.com", "email for the seeded demo user")
	flag.StringVar(&userName, "user-name", "Demo Shopper", "display name for the seeded demo user")
	flag.StringVar(&token, "token", "", "access token to seed (or MART_SEED_TOKEN env)")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for token hashing (or MART_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if token == "" {
		token = os.Getenv("MART_SEED_TOKEN")
	}
	if token == "" {
		slog.Error("access token is required: set --token or MART_SEED_TOKEN")
		os.Exit(1)
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("MART_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, userEmail, userName, token, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, userEmail, userName, token, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedUserWithToken(ctx, pool, userEmail, userName, token, pepper); err != nil {
		return errors.Wrap(err, "seed user")
	}

	return nil
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

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Price, p.Stock, p.IsProxy, p.Category, p.ImageURL,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

const (
	upsertUserSQL = `
INSERT INTO users (id, email, display_name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
	email = EXCLUDED.email,
	display_name = EXCLUDED.display_name`

	upsertTokenSQL = `
INSERT INTO auth_tokens (token_hash, user_id)
VALUES ($1, $2)
ON CONFLICT (token_hash) DO UPDATE SET user_id = EXCLUDED.user_id`
)

func seedUserWithToken(ctx context.Context, pool *pgxpool.Pool, email, name, token, pepper string) error {
	slog.Info("seeding demo user", slog.String("email", email))

	const userID = "demo-user"
	if _, err := pool.Exec(ctx, upsertUserSQL, userID, email, name); err != nil {
		return errors.Wrap(err, "upsert demo user")
	}

	tokenHash := handler.HashToken(token, []byte(pepper))
	if _, err := pool.Exec(ctx, upsertTokenSQL, tokenHash, userID); err != nil {
		return errors.Wrap(err, "upsert access token")
	}

	slog.Info("upserted access token", slog.String("user_id", userID))

	return nil
}
