// Package oracle reads the Globus source database. It never writes.
package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	_ "github.com/sijms/go-ora/v2"
	"github.com/sirupsen/logrus"
)

// ErrDisabled is returned by every query of a gateway built without a source.
var ErrDisabled = errors.New("oracle gateway disabled")

// Gateway runs read-only queries and returns rows keyed by upper-case column
// name.
type Gateway struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// Open connects with go-ora and pings up to attempts times with exponential
// backoff. An empty dsn yields a disabled gateway.
func Open(ctx context.Context, dsn string, attempts int, log logrus.FieldLogger) (*Gateway, error) {
	if dsn == "" {
		return Disabled(log), nil
	}
	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("open oracle: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := ping(ctx, db, attempts, time.Second, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect oracle: %w", err)
	}
	return New(db, log), nil
}

// New wraps an open handle.
func New(db *sql.DB, log logrus.FieldLogger) *Gateway {
	return &Gateway{db: db, log: log.WithField("component", "oracle")}
}

// Disabled returns a gateway whose queries fail with ErrDisabled.
func Disabled(log logrus.FieldLogger) *Gateway {
	return &Gateway{log: log.WithField("component", "oracle")}
}

func ping(ctx context.Context, db *sql.DB, attempts int, base time.Duration, log logrus.FieldLogger) error {
	if attempts < 1 {
		attempts = 1
	}
	try := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		try++
		if err := db.PingContext(ctx); err != nil {
			log.WithError(err).WithField("attempt", try).Warn("oracle ping failed")
			return retry.RetryableError(err)
		}
		return nil
	})
}

// Enabled reports whether the gateway has a source behind it.
func (g *Gateway) Enabled() bool { return g.db != nil }

// Close releases the handle.
func (g *Gateway) Close() error {
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}

// Query runs q and materializes every row. Byte slices are returned as
// strings.
func (g *Gateway) Query(ctx context.Context, q string) ([]map[string]any, error) {
	if g.db == nil {
		return nil, ErrDisabled
	}
	start := time.Now()
	rows, err := g.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("oracle query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = strings.ToUpper(c)
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("oracle scan: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[keys[i]] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("oracle rows: %w", err)
	}
	g.log.WithFields(logrus.Fields{"rows": len(out), "elapsed": time.Since(start)}).Debug("oracle query done")
	return out, nil
}
