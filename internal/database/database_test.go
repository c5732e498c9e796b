package database

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestWithConnectTimeout(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		timeout time.Duration
		want    string
	}{
		{"url", "postgres://u:p@db:5432/shop", 5 * time.Second, "postgres://u:p@db:5432/shop?connect_timeout=5"},
		{"url with query", "postgresql://db/shop?sslmode=disable", 3 * time.Second, "postgresql://db/shop?sslmode=disable&connect_timeout=3"},
		{"keyword form", "host=db dbname=shop", 10 * time.Second, "host=db dbname=shop connect_timeout=10"},
		{"already set", "postgres://db/shop?connect_timeout=1", 5 * time.Second, "postgres://db/shop?connect_timeout=1"},
		{"disabled", "postgres://db/shop", 0, "postgres://db/shop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withConnectTimeout(tt.dsn, tt.timeout); got != tt.want {
				t.Errorf("withConnectTimeout(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestEnsureDatabaseSkipsKeywordDSN(t *testing.T) {
	if err := ensureDatabase("host=db dbname=shop", time.Second); err != nil {
		t.Fatalf("expected keyword DSN to be skipped, got %v", err)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:migrate?mode=memory&cache=shared"), Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	for i := 0; i < 2; i++ {
		if err := Migrate(db); err != nil {
			t.Fatalf("migrate pass %d: %v", i+1, err)
		}
	}
	for _, table := range []string{"users", "catalogs", "catalog_allowed_users", "products", "orders", "order_items", "notifications"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table %s missing", table)
		}
	}
}
