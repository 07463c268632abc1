// Command seed-db loads the product catalog from a JSON file and creates a
// couple of starter promo codes. It is idempotent: products are upserted by
// name and promo codes that already exist are left untouched.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shopcraft/storefront/internal/domain/promo"
	"github.com/shopcraft/storefront/internal/repository"
)

type productJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
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

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedPromoCodes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}

	return nil
}

const upsertProductSQL = `
INSERT INTO products (name, description, price, image_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE
SET description = EXCLUDED.description,
    price       = EXCLUDED.price,
    image_url   = EXCLUDED.image_url`

func seedProducts(ctx context.Context, db repository.DB, productsFile string) error {
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
		if _, err := db.Exec(ctx, upsertProductSQL, p.Name, p.Description, p.Price, p.ImageURL); err != nil {
			return errors.Wrapf(err, "upsert product %q", p.Name)
		}

		slog.Info("upserted product", slog.String("name", p.Name))
	}

	return nil
}

func seedPromoCodes(ctx context.Context, db repository.DB) error {
	slog.Info("seeding starter promo codes")

	codes := []promo.Code{
		{
			Name:         "WELCOME10",
			Discount:     decimal.NewFromInt(10),
			UsageLimit:   0,
			Active:       true,
			AppliesToAll: true,
		},
		{
			Name:         "LAUNCH50",
			Discount:     decimal.NewFromInt(50),
			UsageLimit:   100,
			Active:       true,
			AppliesToAll: true,
		},
	}

	for _, c := range codes {
		if _, err := db.Exec(ctx,
			`INSERT INTO promo_codes (name, discount, usage_limit, active, applies_to_all)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (name) DO NOTHING`,
			c.Name, c.Discount, c.UsageLimit, c.Active, c.AppliesToAll,
		); err != nil {
			return errors.Wrapf(err, "seed promo code %q", c.Name)
		}

		slog.Info("seeded promo code", slog.String("name", c.Name))
	}

	return nil
}
