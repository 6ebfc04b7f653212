package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// The active_* generated columns are NULL for deleted rows, so the unique
// keys only apply among active customers and products.
var schema = []struct {
	table string
	query string
}{
	{"customers", `
		CREATE TABLE IF NOT EXISTS customers (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(255) NOT NULL,
			tier VARCHAR(16) NOT NULL DEFAULT 'REGULAR',
			total_spent DECIMAL(19,2) NOT NULL DEFAULT 0,
			lifecycle VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			active_email VARCHAR(255) AS (IF(lifecycle = 'ACTIVE', email, NULL)) STORED,
			UNIQUE KEY uq_customers_active_email (active_email),
			KEY idx_customers_tier (tier),
			CHECK (total_spent >= 0)
		);
	`},
	{"products", `
		CREATE TABLE IF NOT EXISTS products (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			category VARCHAR(16) NOT NULL,
			price DECIMAL(19,2) NOT NULL,
			stock BIGINT NOT NULL DEFAULT 0,
			lifecycle VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			active_name VARCHAR(100) AS (IF(lifecycle = 'ACTIVE', name, NULL)) STORED,
			UNIQUE KEY uq_products_active_name (active_name),
			KEY idx_products_category (category),
			CHECK (stock >= 0),
			CHECK (price > 0)
		);
	`},
	{"orders", `
		CREATE TABLE IF NOT EXISTS orders (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			total_amount DECIMAL(19,2) NOT NULL,
			discount_amount DECIMAL(19,2) NOT NULL,
			final_amount DECIMAL(19,2) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			KEY idx_orders_customer (customer_id),
			KEY idx_orders_status (status),
			FOREIGN KEY (customer_id) REFERENCES customers(id)
		);
	`},
	{"order_items", `
		CREATE TABLE IF NOT EXISTS order_items (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			order_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			quantity BIGINT NOT NULL,
			unit_price DECIMAL(19,2) NOT NULL,
			KEY idx_order_items_product (product_id),
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
			FOREIGN KEY (product_id) REFERENCES products(id),
			CHECK (quantity > 0)
		);
	`},
}

// AutoMigrate creates the customers, products, orders and order_items tables
// if they do not exist. Each statement is retried once a second up to
// retries times.
func AutoMigrate(ctx context.Context, retries int, db *sql.DB) error {
	for _, s := range schema {
		_, err := db.ExecContext(ctx, s.query)
		for i := 0; err != nil && i < retries; i++ {
			log.Warn().Msgf("Retry %d: creating table %s: %v", i+1, s.table, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(1 * time.Second):
			}
			_, err = db.ExecContext(ctx, s.query)
		}
		if err != nil {
			return fmt.Errorf("migrate %s: %w", s.table, err)
		}
	}
	return nil
}
