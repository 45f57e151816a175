// Package dbtest opens throwaway SQLite databases carrying the library schema.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  category TEXT NOT NULL,
  copies INTEGER NOT NULL CHECK (copies >= 0),
  available BOOLEAN NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  stack_number TEXT NOT NULL DEFAULT '',
  shelf_number TEXT NOT NULL DEFAULT '',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS borrows (
  id TEXT PRIMARY KEY,
  student_id TEXT NOT NULL,
  book_id TEXT NOT NULL,
  borrowed_at DATETIME NOT NULL,
  returned_at DATETIME,
  is_pending BOOLEAN NOT NULL DEFAULT 0,
  due_date DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_borrows_active_pair ON borrows (student_id, book_id) WHERE returned_at IS NULL;
CREATE TABLE IF NOT EXISTS messages (
  id TEXT PRIMARY KEY,
  recipient_id TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  text TEXT NOT NULL,
  read_at DATETIME,
  created_at DATETIME
);`

// NewSQLite returns an isolated in-memory database with every table created.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.Exec(schema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
