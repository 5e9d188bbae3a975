// Copyright 2020, Square, Inc.

package store

import (
	"context"
	"crypto/tls"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/proto"
)

// Schema is the MySQL table for jobs. CreateSchema creates it if needed.
const Schema = `CREATE TABLE IF NOT EXISTS jobs (
  job_id           VARCHAR(20)  NOT NULL,
  kind             VARCHAR(100) NOT NULL,
  client           VARCHAR(255) NOT NULL,
  agent            VARCHAR(255) NOT NULL DEFAULT '',
  status           VARCHAR(50)  NOT NULL,
  phase            VARCHAR(100) NOT NULL DEFAULT '',
  percent_complete TINYINT UNSIGNED NOT NULL DEFAULT 0,
  delay_reason     VARCHAR(255) NOT NULL DEFAULT '',
  args             BLOB NULL DEFAULT NULL,
  submitted_at     DATETIME(6)  NOT NULL,
  updated_at       DATETIME(6)  NOT NULL,
  PRIMARY KEY (job_id),
  INDEX (client, agent),
  INDEX (kind)
) ENGINE=InnoDB`

const cols = "job_id, kind, client, agent, status, phase, percent_complete, delay_reason, args, submitted_at, updated_at"

// MySQL error 1062: duplicate entry for key
const errDupEntry = 1062

// MySQL is a Store in a MySQL table.
type MySQL struct {
	db *sql.DB
}

func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{
		db: db,
	}
}

// OpenMySQL opens a MySQL connection pool. parseTime=true is always set because
// times are scanned into time.Time.
func OpenMySQL(dsn string, tlsConfig *tls.Config, maxOpen, maxIdle int) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	if tlsConfig != nil {
		if err := mysql.RegisterTLSConfig("job-manager", tlsConfig); err != nil {
			return nil, err
		}
		cfg.TLSConfig = "job-manager"
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}

func (s *MySQL) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *MySQL) Add(ctx context.Context, job proto.Job) error {
	if job.Id == "" {
		return ErrNoJobId
	}
	args, err := marshalArgs(job.Args)
	if err != nil {
		return err
	}
	q := "INSERT INTO jobs (" + cols + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	_, err = s.db.ExecContext(ctx, q,
		job.Id,
		job.Kind,
		job.Client,
		job.Agent,
		string(job.Status),
		job.Phase,
		job.PercentComplete,
		job.DelayReason,
		args,
		job.SubmittedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == errDupEntry {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *MySQL) Get(ctx context.Context, jobId string) (proto.Job, error) {
	q := "SELECT " + cols + " FROM jobs WHERE job_id = ?"
	job, err := scanJob(s.db.QueryRowContext(ctx, q, jobId))
	if err == sql.ErrNoRows {
		return job, serr.JobNotFound{JobId: jobId}
	}
	return job, err
}

func (s *MySQL) List(ctx context.Context, f proto.ListFilter) ([]proto.Job, error) {
	where := []string{}
	vals := []interface{}{}
	if f.Client != "" {
		where = append(where, "client = ?")
		vals = append(vals, f.Client)
	}
	if f.Agent != "" {
		where = append(where, "agent = ?")
		vals = append(vals, f.Agent)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?") // case-insensitive with the default collation
		vals = append(vals, f.Kind)
	}
	if len(f.Status) > 0 {
		in := make([]string, len(f.Status))
		for i, st := range f.Status {
			in[i] = "?"
			vals = append(vals, string(proto.ParseStatus(string(st))))
		}
		where = append(where, "status IN ("+strings.Join(in, ",")+")")
	}
	q := "SELECT " + cols + " FROM jobs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY job_id"

	rows, err := s.db.QueryContext(ctx, q, vals...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	jobs := []proto.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *MySQL) Update(ctx context.Context, jobId string, fn UpdateFunc) (proto.Job, error) {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return proto.Job{}, err
	}
	defer txn.Rollback()

	// Lock the row so concurrent updates of the same job are serialized
	q := "SELECT " + cols + " FROM jobs WHERE job_id = ? FOR UPDATE"
	cur, err := scanJob(txn.QueryRowContext(ctx, q, jobId))
	if err != nil {
		if err == sql.ErrNoRows {
			return cur, serr.JobNotFound{JobId: jobId}
		}
		return cur, err
	}

	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	next.Id = cur.Id
	args, err := marshalArgs(next.Args)
	if err != nil {
		return cur, err
	}

	q = "UPDATE jobs SET kind = ?, client = ?, agent = ?, status = ?, phase = ?, percent_complete = ?, delay_reason = ?, args = ?, submitted_at = ?, updated_at = ? WHERE job_id = ?"
	_, err = txn.ExecContext(ctx, q,
		next.Kind,
		next.Client,
		next.Agent,
		string(next.Status),
		next.Phase,
		next.PercentComplete,
		next.DelayReason,
		args,
		next.SubmittedAt,
		next.UpdatedAt,
		next.Id,
	)
	if err != nil {
		return cur, err
	}
	if err := txn.Commit(); err != nil {
		return cur, err
	}
	return next, nil
}

// --------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (proto.Job, error) {
	var job proto.Job
	var status string
	var args []byte
	err := row.Scan(
		&job.Id,
		&job.Kind,
		&job.Client,
		&job.Agent,
		&status,
		&job.Phase,
		&job.PercentComplete,
		&job.DelayReason,
		&args,
		&job.SubmittedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return job, err
	}
	job.Status = proto.Status(status)
	if len(args) > 0 {
		if err := json.Unmarshal(args, &job.Args); err != nil {
			return job, fmt.Errorf("cannot unmarshal args of job %s: %s", job.Id, err)
		}
	}
	return job, nil
}

func marshalArgs(args map[string]interface{}) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return json.Marshal(args)
}
