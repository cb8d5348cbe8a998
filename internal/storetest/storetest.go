// Package storetest opens an in-memory SQLite database carrying the
// production schema, for package tests that exercise real SQL.
package storetest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		uid INTEGER NOT NULL UNIQUE,
		nickname TEXT NOT NULL DEFAULT '',
		avatar_url TEXT,
		points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
		last_login_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE tarot_spreads (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		card_count INTEGER NOT NULL,
		ai_prompt TEXT,
		point_multiplier REAL NOT NULL DEFAULT 1,
		is_enabled BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE ai_conversations (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		conversation_type TEXT NOT NULL,
		status TEXT NOT NULL,
		total_cost INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE ai_messages (
		id INTEGER PRIMARY KEY,
		conversation_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE tarot_ai_requests (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		conversation_id INTEGER NOT NULL,
		spread_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		cards TEXT NOT NULL,
		cost INTEGER NOT NULL,
		correlation_id TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE user_checkins (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		checkin_date DATE NOT NULL,
		points_earned INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (user_id, checkin_date)
	)`,
}

// Open returns a fresh database named after the running test. The pool is
// limited to one connection so concurrent tests serialize on SQLite's lock
// instead of failing with SQLITE_BUSY.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}
