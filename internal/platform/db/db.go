package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

func dsn(c DatabaseConfig) string {
	if c.Driver == DriverMySQL {
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
			c.Username, c.Password, c.Host, c.Port, c.DBName)
	}
	// WAL + busy_timeout: スキャンループの参照と登録操作の書き込みが重なっても待たせる
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", c.Path)
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(c.Driver, dsn(c))
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	if c.Driver == DriverSQLite {
		// ローカルファイル。書き込みは1本に絞る
		db.SetMaxOpenConns(1)
		return db, nil
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
