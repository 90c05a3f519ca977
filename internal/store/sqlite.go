package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bizdesk/bizdesk-go/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite 的客户存储
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite 打开（必要时创建）SQLite 数据库
//
// dbPath 为 ":memory:" 时使用单连接的内存数据库。
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	memory := dbPath == ":memory:"

	dsn := dbPath
	if !memory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if memory {
		// 每个连接都是独立的内存库
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL COLLATE NOCASE,
		phone TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (user_id, email)
	);
	CREATE INDEX IF NOT EXISTS idx_clients_user ON clients(user_id, last_name, first_name);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const clientColumns = `id, user_id, first_name, last_name, email, phone, company, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*model.Client, error) {
	var c model.Client
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Email,
		&c.Phone, &c.Company, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

func (s *SQLiteStore) queryClients(ctx context.Context, query string, args ...any) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client row: %w", err)
		}
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client rows: %w", err)
	}
	return clients, nil
}

// CreateClient 新建客户，同一用户下邮箱重复返回 ErrDuplicate
func (s *SQLiteStore) CreateClient(ctx context.Context, c *model.Client) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (user_id, first_name, last_name, email, phone, company, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.FirstName, c.LastName, c.Email, c.Phone, c.Company,
		c.CreatedAt.Unix(), c.UpdatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("client %s: %w", c.Email, ErrDuplicate)
		}
		return fmt.Errorf("insert client: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read client id: %w", err)
	}
	c.ID = id
	return nil
}

// GetClientByEmail 按邮箱查询（不区分大小写）
func (s *SQLiteStore) GetClientByEmail(ctx context.Context, userID, email string) (*model.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE user_id = ? AND email = ?`,
		userID, strings.TrimSpace(email))

	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan client row: %w", err)
	}
	return c, nil
}

// FindClientsByName 按姓名模糊匹配，完全匹配的排在前面
func (s *SQLiteStore) FindClientsByName(ctx context.Context, userID, name string) ([]model.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	like := "%" + escapeLike(name) + "%"
	return s.queryClients(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE user_id = ?
		  AND (first_name || ' ' || last_name LIKE ? ESCAPE '\'
		       OR first_name LIKE ? ESCAPE '\'
		       OR last_name LIKE ? ESCAPE '\')
		ORDER BY CASE WHEN lower(first_name || ' ' || last_name) = lower(?) THEN 0 ELSE 1 END,
		         last_name, first_name, id`,
		userID, like, like, like, name)
}

// ListClients 列出客户，filter 非空时匹配姓名、邮箱、公司
func (s *SQLiteStore) ListClients(ctx context.Context, userID, filter string) ([]model.Client, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return s.queryClients(ctx,
			`SELECT `+clientColumns+` FROM clients WHERE user_id = ? ORDER BY id`, userID)
	}
	like := "%" + escapeLike(filter) + "%"
	return s.queryClients(ctx, `
		SELECT `+clientColumns+` FROM clients
		WHERE user_id = ?
		  AND (first_name || ' ' || last_name LIKE ? ESCAPE '\'
		       OR email LIKE ? ESCAPE '\'
		       OR company LIKE ? ESCAPE '\')
		ORDER BY id`,
		userID, like, like, like)
}

// UpdateClient 更新客户
func (s *SQLiteStore) UpdateClient(ctx context.Context, c *model.Client) error {
	c.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET first_name = ?, last_name = ?, email = ?, phone = ?, company = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Company, c.UpdatedAt.Unix(), c.ID, c.UserID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("client %s: %w", c.Email, ErrDuplicate)
		}
		return fmt.Errorf("update client: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountClients 用户的客户数量
func (s *SQLiteStore) CountClients(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clients WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}

// Ping 检查数据库连接
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
