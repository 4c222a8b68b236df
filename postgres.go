package demobank

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

var (
	pgSelectAccountSQL = `
		SELECT id, customer_id, account_number, account_type, balance,
		       overdraft_limit, interest_rate, status, opened_at
		FROM accounts
		WHERE id = $1;
	`

	pgSelectAccountForUpdateSQL = `
		SELECT id, customer_id, account_number, account_type, balance,
		       overdraft_limit, interest_rate, status, opened_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE;
	`

	pgSelectAccountByNumberSQL = `
		SELECT id, customer_id, account_number, account_type, balance,
		       overdraft_limit, interest_rate, status, opened_at
		FROM accounts
		WHERE account_number = $1;
	`

	pgSelectAccountsByCustomerSQL = `
		SELECT id, customer_id, account_number, account_type, balance,
		       overdraft_limit, interest_rate, status, opened_at
		FROM accounts
		WHERE customer_id = $1
		ORDER BY id;
	`

	pgSelectAllAccountsSQL = `
		SELECT id, customer_id, account_number, account_type, balance,
		       overdraft_limit, interest_rate, status, opened_at
		FROM accounts
		ORDER BY id;
	`

	pgInsertAccountSQL = `
		INSERT INTO accounts (id, customer_id, account_number, account_type,
		                      balance, overdraft_limit, interest_rate, status, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`

	pgUpdateAccountSQL = `
		UPDATE accounts
		SET balance = $1, status = $2
		WHERE id = $3;
	`

	pgInsertEntrySQL = `
		INSERT INTO transactions (account_id, txn_type, amount, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, txn_date;
	`

	pgSelectEntriesSQL = `
		SELECT id, account_id, txn_type, amount, txn_date, note
		FROM transactions
		WHERE account_id = $1
		ORDER BY txn_date DESC, id DESC;
	`

	pgSelectAllEntriesSQL = `
		SELECT id, account_id, txn_type, amount, txn_date, note
		FROM transactions
		ORDER BY txn_date DESC, id DESC;
	`

	pgInsertCustomerSQL = `
		INSERT INTO customers (id, first_name, last_name, email, phone, dob,
		                       password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`

	pgSelectCustomerSQL = `
		SELECT id, first_name, last_name, email, phone, dob, password_hash, created_at
		FROM customers
		WHERE id = $1;
	`

	pgSelectCustomerByEmailSQL = `
		SELECT id, first_name, last_name, email, phone, dob, password_hash, created_at
		FROM customers
		WHERE lower(email) = lower($1);
	`

	pgUpdateCustomerSQL = `
		UPDATE customers
		SET first_name = $1, last_name = $2, phone = $3, dob = $4, password_hash = $5
		WHERE id = $6;
	`
)

type PostgresEndpoint struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

var (
	_ Repository = (*PostgresEndpoint)(nil)
)

func NewPostgresEndpoint(connStr string, log *zerolog.Logger) (*PostgresEndpoint, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if err = pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	endpt := &PostgresEndpoint{
		pool: pool,
		log:  log,
	}
	return endpt, err
}

func (pg *PostgresEndpoint) CreateCustomer(ctx context.Context, c *Customer) error {
	_, err := pg.pool.Exec(ctx, pgInsertCustomerSQL,
		c.ID.Int64(), c.FirstName, c.LastName, c.Email, c.Phone, c.DOB,
		c.PasswordHash, c.CreatedAt)
	return err
}

func (pg *PostgresEndpoint) GetCustomer(ctx context.Context, id snowflake.ID) (*Customer, error) {
	cust, err := scanCustomer(pg.pool.QueryRow(ctx, pgSelectCustomerSQL, id.Int64()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCustomerNotFound{ID: id}
	}
	return cust, err
}

func (pg *PostgresEndpoint) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	cust, err := scanCustomer(pg.pool.QueryRow(ctx, pgSelectCustomerByEmailSQL, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCustomerNotFound{Email: email}
	}
	return cust, err
}

func (pg *PostgresEndpoint) SaveCustomer(ctx context.Context, c *Customer) error {
	cmd, err := pg.pool.Exec(ctx, pgUpdateCustomerSQL,
		c.FirstName, c.LastName, c.Phone, c.DOB, c.PasswordHash, c.ID.Int64())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCustomerNotFound{ID: c.ID}
	}
	return nil
}

func (pg *PostgresEndpoint) GetAccount(ctx context.Context, id snowflake.ID) (*Account, error) {
	acct, err := scanAccount(pg.pool.QueryRow(ctx, pgSelectAccountSQL, id.Int64()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound{ID: id}
	}
	return acct, err
}

func (pg *PostgresEndpoint) GetAccountByNumber(ctx context.Context, number string) (*Account, error) {
	acct, err := scanAccount(pg.pool.QueryRow(ctx, pgSelectAccountByNumberSQL, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound{}
	}
	return acct, err
}

func (pg *PostgresEndpoint) AccountsByCustomer(ctx context.Context, customerID snowflake.ID) ([]Account, error) {
	rows, err := pg.pool.Query(ctx, pgSelectAccountsByCustomerSQL, customerID.Int64())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accts []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accts = append(accts, *acct)
	}
	return accts, rows.Err()
}

func (pg *PostgresEndpoint) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := pg.pool.Query(ctx, pgSelectAllAccountsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accts []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accts = append(accts, *acct)
	}
	return accts, rows.Err()
}

func (pg *PostgresEndpoint) ListEntries(ctx context.Context, acctID snowflake.ID) ([]Entry, error) {
	rows, err := pg.pool.Query(ctx, pgSelectEntriesSQL, acctID.Int64())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (pg *PostgresEndpoint) ListAllEntries(ctx context.Context) ([]Entry, error) {
	rows, err := pg.pool.Query(ctx, pgSelectAllEntriesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e   Entry
			aid int64
		)
		if err := rows.Scan(&e.ID, &aid, &e.Type, &e.Amount, &e.Time, &e.Note); err != nil {
			return nil, err
		}
		e.AccountID = snowflake.ID(aid)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Begin opens one database transaction per engine unit of work. Row locks
// taken through AccountForUpdate are released by the database together
// with Commit/Rollback.
func (pg *PostgresEndpoint) Begin(ctx context.Context) (Tx, error) {
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		conn.Release()
		return nil, err
	}
	return &pgTx{conn: conn, tx: tx, log: pg.log}, nil
}

type pgTx struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
	log  *zerolog.Logger
	done bool
}

func (t *pgTx) AccountForUpdate(ctx context.Context, id snowflake.ID) (*Account, error) {
	acct, err := scanAccount(t.tx.QueryRow(ctx, pgSelectAccountForUpdateSQL, id.Int64()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound{ID: id}
	}
	return acct, err
}

func (t *pgTx) CreateAccount(ctx context.Context, a *Account) error {
	_, err := t.tx.Exec(ctx, pgInsertAccountSQL,
		a.ID.Int64(), a.CustomerID.Int64(), a.Number, a.Type,
		a.Balance, a.OverdraftLimit, a.InterestRate, a.Status, a.OpenedAt)
	return err
}

func (t *pgTx) SaveAccount(ctx context.Context, a *Account) error {
	cmd, err := t.tx.Exec(ctx, pgUpdateAccountSQL, a.Balance, a.Status, a.ID.Int64())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound{ID: a.ID}
	}
	return nil
}

func (t *pgTx) AppendEntry(ctx context.Context, e *Entry) error {
	row := t.tx.QueryRow(ctx, pgInsertEntrySQL,
		e.AccountID.Int64(), e.Type, e.Amount, e.Note)
	return row.Scan(&e.ID, &e.Time)
}

func (t *pgTx) Commit(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	err := t.tx.Commit(ctx)
	t.conn.Release()
	t.done = true
	return err
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		t.log.Err(err).Msg("unit of work rollback fail")
	}
	t.conn.Release()
	t.done = true
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a          Account
		id, custID int64
	)
	err := row.Scan(&id, &custID, &a.Number, &a.Type, &a.Balance,
		&a.OverdraftLimit, &a.InterestRate, &a.Status, &a.OpenedAt)
	if err != nil {
		return nil, err
	}
	a.ID = snowflake.ID(id)
	a.CustomerID = snowflake.ID(custID)
	return &a, nil
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var (
		c  Customer
		id int64
	)
	err := row.Scan(&id, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.DOB, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = snowflake.ID(id)
	return &c, nil
}
