package schema

import (
	"context"
	"fmt"
)

// seedDDL creates the sample tables used for offline demos and tests.
const seedDDL = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id       INTEGER PRIMARY KEY,
    name              TEXT    NOT NULL,
    email             TEXT    NOT NULL,
    age               INTEGER NOT NULL,
    city              TEXT    NOT NULL,
    registration_date TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
    product_id     INTEGER PRIMARY KEY,
    name           TEXT    NOT NULL,
    category       TEXT    NOT NULL,
    price          REAL    NOT NULL,
    stock_quantity INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
    order_id     INTEGER PRIMARY KEY,
    customer_id  INTEGER NOT NULL REFERENCES customers(customer_id),
    product_id   INTEGER NOT NULL REFERENCES products(product_id),
    quantity     INTEGER NOT NULL,
    total_amount REAL    NOT NULL,
    order_date   TEXT    NOT NULL
);
`

// Seed populates the database with a small customers/products/orders dataset
// so dataq works out of the box without an existing database. Existing rows
// are cleared first; seeding twice yields the same content.
func (i *Introspector) Seed(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, seedDDL); err != nil {
		return fmt.Errorf("schema: seed ddl: %w", err)
	}

	for _, table := range []string{"orders", "products", "customers"} {
		if _, err := i.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, quoteIdent(table))); err != nil {
			return fmt.Errorf("schema: seed clear %s: %w", table, err)
		}
	}

	customers := [][]any{
		{1, "John Doe", "john@email.com", 28, "New York", "2023-01-15"},
		{2, "Jane Smith", "jane@email.com", 34, "Los Angeles", "2023-02-20"},
		{3, "Bob Johnson", "bob@email.com", 45, "Chicago", "2023-03-10"},
		{4, "Alice Brown", "alice@email.com", 29, "Houston", "2023-04-05"},
		{5, "Charlie Wilson", "charlie@email.com", 38, "Phoenix", "2023-05-12"},
	}
	for _, row := range customers {
		if _, err := i.db.ExecContext(ctx,
			`INSERT INTO customers VALUES (?, ?, ?, ?, ?, ?)`, row...); err != nil {
			return fmt.Errorf("schema: seed customers: %w", err)
		}
	}

	products := [][]any{
		{1, "Laptop", "Electronics", 999.99, 50},
		{2, "Smartphone", "Electronics", 699.99, 100},
		{3, "Desk Chair", "Furniture", 199.99, 25},
		{4, "Monitor", "Electronics", 299.99, 30},
		{5, "Keyboard", "Electronics", 79.99, 75},
	}
	for _, row := range products {
		if _, err := i.db.ExecContext(ctx,
			`INSERT INTO products VALUES (?, ?, ?, ?, ?)`, row...); err != nil {
			return fmt.Errorf("schema: seed products: %w", err)
		}
	}

	orders := [][]any{
		{1, 1, 1, 2, 1999.98, "2023-06-01"},
		{2, 2, 2, 1, 699.99, "2023-06-02"},
		{3, 3, 3, 1, 199.99, "2023-06-03"},
		{4, 1, 4, 1, 299.99, "2023-06-04"},
		{5, 4, 5, 2, 159.98, "2023-06-05"},
		{6, 2, 1, 1, 999.99, "2023-06-06"},
		{7, 5, 2, 1, 699.99, "2023-06-07"},
	}
	for _, row := range orders {
		if _, err := i.db.ExecContext(ctx,
			`INSERT INTO orders VALUES (?, ?, ?, ?, ?, ?)`, row...); err != nil {
			return fmt.Errorf("schema: seed orders: %w", err)
		}
	}

	return nil
}
