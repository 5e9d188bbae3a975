// Copyright 2020, Square, Inc.

package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/square/jobctl/job-manager/store"
)

// Set JOBCTL_TEST_MYSQL_DSN to a test database, like "root@tcp(127.0.0.1:3306)/jobctl_test".
// The jobs table in it is dropped.
func TestMySQL(t *testing.T) {
	dsn := os.Getenv("JOBCTL_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("JOBCTL_TEST_MYSQL_DSN not set")
	}
	db, err := store.OpenMySQL(dsn, nil, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS jobs"); err != nil {
		t.Fatal(err)
	}
	s := store.NewMySQL(db)
	if err := s.CreateSchema(ctx); err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}
