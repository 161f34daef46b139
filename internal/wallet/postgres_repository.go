package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/helden/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(cred *Credentials) (*PostgresRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "wallet_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// Credit locks the wallet row for the duration of the transaction; the partial
// unique index on (user_id, reference) rejects a replayed reference.
func (r *PostgresRepository) Credit(ctx context.Context, userID string, tx domain.WalletTransaction) (err error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wallet tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if _, err = dbTx.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance, created_at, updated_at)
		 VALUES ($1, 0, $2, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, tx.CreatedAt); err != nil {
		return fmt.Errorf("create wallet: %w", err)
	}

	var balance float64
	if err = dbTx.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance); err != nil {
		return fmt.Errorf("lock wallet: %w", err)
	}

	var reference sql.NullString
	if tx.Reference != "" {
		reference = sql.NullString{String: tx.Reference, Valid: true}
	}
	_, err = dbTx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (id, user_id, amount, type, description, reference, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, userID, tx.Amount, string(tx.Type), tx.Description, reference, tx.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = ErrDuplicateReference
			return err
		}
		return fmt.Errorf("insert wallet transaction: %w", err)
	}

	if _, err = dbTx.ExecContext(ctx,
		`UPDATE wallets SET balance = $2, updated_at = $3 WHERE user_id = $1`,
		userID, balance+tx.Signed(), tx.CreatedAt); err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("commit wallet tx: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Page(ctx context.Context, userID string, page, limit int) (*domain.WalletPage, error) {
	page, limit = normalizePage(page, limit)

	var balance float64
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query wallet: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wallet_transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("count wallet transactions: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount, type, description, COALESCE(reference, ''), created_at
		 FROM wallet_transactions WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query wallet transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]domain.WalletTransaction, 0, limit)
	for rows.Next() {
		var t domain.WalletTransaction
		var txType string
		if err := rows.Scan(&t.ID, &t.Amount, &txType, &t.Description, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet transaction: %w", err)
		}
		t.Type = domain.TransactionType(txType)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &domain.WalletPage{
		Balance:      balance,
		Transactions: txs,
		TotalPages:   totalPages(total, limit),
		CurrentPage:  page,
	}, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
