package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const demoPassword = "lumber-demo-123"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	demoUserID := seedUsers(ctx, pool)
	vendorIDs := seedVendors(ctx, pool)
	productIDs := seedProducts(ctx, pool)
	seedListings(ctx, pool, vendorIDs, productIDs, demoUserID)
	seedBuildOrder(ctx, pool, demoUserID, productIDs)

	log.Println("Seeding completed successfully!")
	log.Printf("Demo login: demo@lumberlens.com / %s", demoPassword)
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) string {
	fmt.Println("Seeding Users...")
	hash, err := argon2id.CreateHash(demoPassword, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	var id string
	err = pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, zip_code)
		VALUES ('Demo Builder', 'demo@lumberlens.com', $1, '97217')
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id;
	`, hash).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed demo user: %v", err)
	}
	return id
}

func seedVendors(ctx context.Context, pool *pgxpool.Pool) map[string]string {
	vendors := []struct {
		Name    string
		Chain   string
		Address string
		City    string
		State   string
		Zip     string
	}{
		{"Hometown Lumber", "", "4815 N Interstate Ave", "Portland", "OR", "97217"},
		{"Cascade Building Supply", "", "211 SE Stark St", "Portland", "OR", "97214"},
		{"TimberMart #42", "TimberMart", "9900 SW Canyon Rd", "Beaverton", "OR", "97005"},
		{"TimberMart #57", "TimberMart", "1200 Lancaster Dr NE", "Salem", "OR", "97301"},
	}

	fmt.Println("Seeding Vendors...")
	ids := make(map[string]string, len(vendors))
	for _, v := range vendors {
		id, err := lookupOrInsert(ctx, pool,
			`SELECT id FROM vendors WHERE name = $1`,
			`INSERT INTO vendors (name, chain, address, city, state, zip_code)
			 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6) RETURNING id`,
			[]any{v.Name},
			[]any{v.Name, v.Chain, v.Address, v.City, v.State, v.Zip},
		)
		if err != nil {
			log.Fatalf("Failed to seed vendor %s: %v", v.Name, err)
		}
		ids[v.Name] = id
	}
	return ids
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) map[string]string {
	products := []struct {
		Name      string
		Species   string
		Grade     string
		Treatment string
		Category  string
		Width     int
		Depth     int
		LengthFt  int
	}{
		{"2x4x8' SPF Stud", "spf", "stud", "", "dimensional", 2, 4, 8},
		{"2x4x10' SPF #2", "spf", "#2", "", "dimensional", 2, 4, 10},
		{"2x6x10' Western Red Cedar", "cedar", "select", "", "dimensional", 2, 6, 10},
		{"2x6x12' Doug Fir #2", "doug-fir", "#2", "", "dimensional", 2, 6, 12},
		{"4x4x8' Ground Contact PT", "syp", "#2", "pt-gc", "dimensional", 4, 4, 8},
		{"2x10x12' Doug Fir #1", "doug-fir", "#1", "", "dimensional", 2, 10, 12},
		{"1x6x8' Pine Board", "pine", "common", "", "boards", 1, 6, 8},
		{"5/4x6x12' Cedar Decking", "cedar", "select", "", "decking", 1, 6, 12},
	}

	fmt.Println("Seeding Products...")
	ids := make(map[string]string, len(products))
	for _, p := range products {
		boardFeet := float64(p.Width*p.Depth*p.LengthFt) / 12
		id, err := lookupOrInsert(ctx, pool,
			`SELECT id FROM products WHERE name = $1`,
			`INSERT INTO products (name, species, grade, treatment, category, nominal_width, nominal_depth, length_ft, board_feet)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			[]any{p.Name},
			[]any{p.Name, p.Species, p.Grade, p.Treatment, p.Category, p.Width, p.Depth, p.LengthFt, boardFeet},
		)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Name, err)
		}
		ids[p.Name] = id
	}
	return ids
}

func seedListings(ctx context.Context, pool *pgxpool.Pool, vendors, products map[string]string, demoUserID string) {
	type listing struct {
		Vendor     string
		Product    string
		PriceCents int64
		InStock    bool
		Source     string
		Confidence float64
	}

	listings := []listing{
		{"Hometown Lumber", "2x4x8' SPF Stud", 428, true, "scrape", 1.0},
		{"Hometown Lumber", "2x4x10' SPF #2", 615, true, "scrape", 1.0},
		{"Hometown Lumber", "2x6x10' Western Red Cedar", 2250, true, "scrape", 1.0},
		{"Hometown Lumber", "4x4x8' Ground Contact PT", 1497, false, "scrape", 1.0},
		{"Hometown Lumber", "2x10x12' Doug Fir #1", 3185, true, "scrape", 1.0},
		{"Cascade Building Supply", "2x4x8' SPF Stud", 455, true, "scrape", 1.0},
		{"Cascade Building Supply", "2x6x10' Western Red Cedar", 2098, true, "scrape", 1.0},
		{"Cascade Building Supply", "2x6x12' Doug Fir #2", 1247, true, "scrape", 1.0},
		{"Cascade Building Supply", "4x4x8' Ground Contact PT", 1389, true, "scrape", 1.0},
		{"Cascade Building Supply", "5/4x6x12' Cedar Decking", 1875, true, "scrape", 1.0},
		{"TimberMart #42", "2x4x8' SPF Stud", 398, true, "scrape", 1.0},
		{"TimberMart #42", "2x4x10' SPF #2", 579, true, "scrape", 1.0},
		{"TimberMart #42", "2x6x12' Doug Fir #2", 1310, true, "scrape", 1.0},
		{"TimberMart #42", "1x6x8' Pine Board", 712, true, "scrape", 1.0},
		{"TimberMart #57", "2x4x8' SPF Stud", 405, true, "user", 0.5},
		{"TimberMart #57", "2x10x12' Doug Fir #1", 2995, true, "user", 0.5},
	}

	fmt.Println("Seeding Listings...")
	for _, l := range listings {
		vendorID, ok := vendors[l.Vendor]
		if !ok {
			log.Fatalf("Unknown vendor %s in listing seed", l.Vendor)
		}
		productID, ok := products[l.Product]
		if !ok {
			log.Fatalf("Unknown product %s in listing seed", l.Product)
		}

		var submittedBy *string
		var expiresAt *time.Time
		if l.Source == "user" {
			submittedBy = &demoUserID
			exp := time.Now().Add(14 * 24 * time.Hour)
			expiresAt = &exp
		}

		_, err := pool.Exec(ctx, `
			INSERT INTO listings (product_id, vendor_id, price_cents, in_stock, confidence, source, submitted_by, expires_at)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8
			WHERE NOT EXISTS (
				SELECT 1 FROM listings WHERE product_id = $1 AND vendor_id = $2 AND source = $6
			);
		`, productID, vendorID, l.PriceCents, l.InStock, l.Confidence, l.Source, submittedBy, expiresAt)
		if err != nil {
			log.Fatalf("Failed to seed listing %s @ %s: %v", l.Product, l.Vendor, err)
		}
	}
}

func seedBuildOrder(ctx context.Context, pool *pgxpool.Pool, userID string, products map[string]string) {
	fmt.Println("Seeding Build Order...")

	var orderID string
	err := pool.QueryRow(ctx, `
		SELECT id FROM build_orders WHERE user_id = $1 AND name = 'Backyard Deck'
	`, userID).Scan(&orderID)
	if err == nil {
		return
	}
	if err != pgx.ErrNoRows {
		log.Fatalf("Failed to check build order: %v", err)
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO build_orders (user_id, name, notes, waste_factor)
		VALUES ($1, 'Backyard Deck', '12x16 ground-level deck', 0.1)
		RETURNING id;
	`, userID).Scan(&orderID)
	if err != nil {
		log.Fatalf("Failed to seed build order: %v", err)
	}

	items := []struct {
		Product  string
		Quantity int
	}{
		{"2x4x8' SPF Stud", 24},
		{"4x4x8' Ground Contact PT", 9},
		{"5/4x6x12' Cedar Decking", 34},
	}
	for _, item := range items {
		productID, ok := products[item.Product]
		if !ok {
			log.Fatalf("Unknown product %s in build order seed", item.Product)
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO build_order_items (build_order_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (build_order_id, product_id) DO NOTHING;
		`, orderID, productID, item.Quantity)
		if err != nil {
			log.Fatalf("Failed to seed build order item %s: %v", item.Product, err)
		}
	}
}

func lookupOrInsert(ctx context.Context, pool *pgxpool.Pool, selectSQL, insertSQL string, selectArgs, insertArgs []any) (string, error) {
	var id string
	err := pool.QueryRow(ctx, selectSQL, selectArgs...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return "", err
	}
	if err := pool.QueryRow(ctx, insertSQL, insertArgs...).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}
