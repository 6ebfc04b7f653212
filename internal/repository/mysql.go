package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"retail-order-service/internal/entity"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

type sqlTxKey struct{}

// executor is the subset of *sql.DB and *sql.Tx the repositories need.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return tx
}

func conn(ctx context.Context, db *sql.DB) executor {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return db
}

// lockClause locks the selected row for the rest of the transaction.
// Transactions lock in the order orders -> customers -> products.
func lockClause(ctx context.Context) string {
	if txFrom(ctx) != nil {
		return " FOR UPDATE"
	}
	return ""
}

func translate(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", ErrDuplicate, myErr.Message)
	}
	return err
}

// SQLTx implements TxManager on database/sql.
type SQLTx struct{ db *sql.DB }

func NewSQLTx(db *sql.DB) *SQLTx { return &SQLTx{db: db} }

var _ TxManager = (*SQLTx)(nil)

func (m *SQLTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, sqlTxKey{}, tx)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

// whereClause joins conditions with AND.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// ---- customers ----

type SQLCustomers struct{ db *sql.DB }

func NewSQLCustomers(db *sql.DB) *SQLCustomers { return &SQLCustomers{db: db} }

var _ CustomerRepository = (*SQLCustomers)(nil)

const customerColumns = `id, name, email, tier, total_spent, lifecycle, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*entity.Customer, error) {
	var c entity.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Tier, &c.TotalSpent, &c.Lifecycle, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *SQLCustomers) Create(ctx context.Context, c *entity.Customer) error {
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt
	query := `INSERT INTO customers (name, email, tier, total_spent, lifecycle, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, c.Name, c.Email, c.Tier, c.TotalSpent, c.Lifecycle, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (r *SQLCustomers) GetByID(ctx context.Context, id int64) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = ?` + lockClause(ctx)
	return scanCustomer(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *SQLCustomers) GetActiveByID(ctx context.Context, id int64) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = ? AND lifecycle = 'ACTIVE'` + lockClause(ctx)
	return scanCustomer(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *SQLCustomers) ExistsActiveEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM customers WHERE email = ? AND id <> ? AND lifecycle = 'ACTIVE'`
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, email, excludeID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLCustomers) Update(ctx context.Context, c *entity.Customer) error {
	c.UpdatedAt = now()
	query := `UPDATE customers SET name = ?, email = ?, tier = ?, total_spent = ?, lifecycle = ?, updated_at = ? WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, c.Name, c.Email, c.Tier, c.TotalSpent, c.Lifecycle, c.UpdatedAt, c.ID)
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

func (r *SQLCustomers) List(ctx context.Context, f CustomerFilter, p PageRequest) (Page[entity.Customer], error) {
	p = p.Normalize()
	conds := []string{"lifecycle = 'ACTIVE'"}
	var args []any
	if f.Tier != "" {
		conds = append(conds, "tier = ?")
		args = append(args, f.Tier)
	}
	if f.Keyword != "" {
		conds = append(conds, "(name LIKE ? OR email LIKE ?)")
		args = append(args, likePattern(f.Keyword), likePattern(f.Keyword))
	}
	where := whereClause(conds)

	out := Page[entity.Customer]{Page: p.Page, Size: p.Size, Items: []entity.Customer{}}
	db := conn(ctx, r.db)
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&out.Total); err != nil {
		return out, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + where + ` ORDER BY id LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, p.Size, p.Offset())...)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return out, err
		}
		out.Items = append(out.Items, *c)
	}
	return out, rows.Err()
}

// ---- products ----

type SQLProducts struct{ db *sql.DB }

func NewSQLProducts(db *sql.DB) *SQLProducts { return &SQLProducts{db: db} }

var _ ProductRepository = (*SQLProducts)(nil)

const productColumns = `id, name, category, price, stock, lifecycle, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Stock, &p.Lifecycle, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *SQLProducts) Create(ctx context.Context, p *entity.Product) error {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	query := `INSERT INTO products (name, category, price, stock, lifecycle, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, p.Name, p.Category, p.Price, p.Stock, p.Lifecycle, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *SQLProducts) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?` + lockClause(ctx)
	return scanProduct(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *SQLProducts) GetActiveByID(ctx context.Context, id int64) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ? AND lifecycle = 'ACTIVE'` + lockClause(ctx)
	return scanProduct(conn(ctx, r.db).QueryRowContext(ctx, query, id))
}

func (r *SQLProducts) ExistsActiveName(ctx context.Context, name string, excludeID int64) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM products WHERE name = ? AND id <> ? AND lifecycle = 'ACTIVE'`
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, name, excludeID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLProducts) Update(ctx context.Context, p *entity.Product) error {
	p.UpdatedAt = now()
	query := `UPDATE products SET name = ?, category = ?, price = ?, stock = ?, lifecycle = ?, updated_at = ? WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, p.Name, p.Category, p.Price, p.Stock, p.Lifecycle, p.UpdatedAt, p.ID)
	if err != nil {
		return translate(err)
	}
	return requireAffected(res)
}

func (r *SQLProducts) AdjustStock(ctx context.Context, id int64, delta int64) (*entity.Product, error) {
	db := conn(ctx, r.db)
	query := `UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ? AND stock + ? >= 0`
	res, err := db.ExecContext(ctx, query, delta, now(), id, delta)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// either the row is missing or the guard rejected the decrement
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientStock
	}
	return r.GetByID(ctx, id)
}

func (r *SQLProducts) List(ctx context.Context, f ProductFilter, p PageRequest) (Page[entity.Product], error) {
	p = p.Normalize()
	conds := []string{"lifecycle = 'ACTIVE'"}
	var args []any
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Keyword != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, likePattern(f.Keyword))
	}
	where := whereClause(conds)

	out := Page[entity.Product]{Page: p.Page, Size: p.Size, Items: []entity.Product{}}
	db := conn(ctx, r.db)
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&out.Total); err != nil {
		return out, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY id LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, p.Size, p.Offset())...)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		pr, err := scanProduct(rows)
		if err != nil {
			return out, err
		}
		out.Items = append(out.Items, *pr)
	}
	return out, rows.Err()
}

// ---- orders ----

type SQLOrders struct{ db *sql.DB }

func NewSQLOrders(db *sql.DB) *SQLOrders { return &SQLOrders{db: db} }

var _ OrderRepository = (*SQLOrders)(nil)

const orderColumns = `id, customer_id, total_amount, discount_amount, final_amount, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*entity.Order, error) {
	var o entity.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.TotalAmount, &o.DiscountAmount, &o.FinalAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// Create inserts the order and its items. Callers run it inside WithTransaction
// so the header and the items commit together.
func (r *SQLOrders) Create(ctx context.Context, o *entity.Order) error {
	db := conn(ctx, r.db)
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt

	query := `INSERT INTO orders (customer_id, total_amount, discount_amount, final_amount, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := db.ExecContext(ctx, query, o.CustomerID, o.TotalAmount, o.DiscountAmount, o.FinalAmount, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return translate(err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = orderID

	if len(o.Items) == 0 {
		return nil
	}

	// Insert all items in one statement
	itemQuery := `INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES `
	var itemArgs []any
	for _, item := range o.Items {
		itemQuery += "(?, ?, ?, ?),"
		itemArgs = append(itemArgs, orderID, item.ProductID, item.Quantity, item.UnitPrice)
	}
	itemQuery = itemQuery[:len(itemQuery)-1]

	res, err = db.ExecContext(ctx, itemQuery, itemArgs...)
	if err != nil {
		return err
	}
	// with a multi-row insert LastInsertId is the id of the first row and
	// the ids of the following rows are consecutive
	firstID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i := range o.Items {
		o.Items[i].ID = firstID + int64(i)
		o.Items[i].OrderID = orderID
	}
	return nil
}

func (r *SQLOrders) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?` + lockClause(ctx)
	o, err := scanOrder(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *SQLOrders) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]entity.OrderItem, error) {
	out := make(map[int64][]entity.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	query := `SELECT id, order_id, product_id, quantity, unit_price FROM order_items WHERE order_id IN (` + placeholders + `) ORDER BY id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item entity.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	return out, rows.Err()
}

func (r *SQLOrders) UpdateStatus(ctx context.Context, id int64, from, to entity.OrderStatus) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, to, now(), id, from)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return translate(err)
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *SQLOrders) List(ctx context.Context, f OrderFilter, p PageRequest) (Page[entity.Order], error) {
	p = p.Normalize()
	var conds []string
	var args []any
	if f.CustomerID != 0 {
		conds = append(conds, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	where := whereClause(conds)

	out := Page[entity.Order]{Page: p.Page, Size: p.Size, Items: []entity.Order{}}
	db := conn(ctx, r.db)
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&out.Total); err != nil {
		return out, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, p.Size, p.Offset())...)
	if err != nil {
		return out, err
	}
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return out, err
		}
		out.Items = append(out.Items, *o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return out, err
	}
	for i := range out.Items {
		out.Items[i].Items = items[out.Items[i].ID]
	}
	return out, nil
}

func (r *SQLOrders) CountItemsByProductAndStatus(ctx context.Context, productID int64, status entity.OrderStatus) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM order_items oi JOIN orders o ON o.id = oi.order_id WHERE oi.product_id = ? AND o.status = ?`
	err := conn(ctx, r.db).QueryRowContext(ctx, query, productID, status).Scan(&n)
	return n, err
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
