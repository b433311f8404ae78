// Package dbsession opens the SQL Server session the core consumes.
// Connection management is an external collaborator per spec.md §1;
// this package exists only to hand the core an already-opened
// *sql.DB, the way a CLI wires a connection before calling in.
package dbsession

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"
)

// Config describes how to reach a SQL Server instance.
type Config struct {
	Server     string
	Database   string
	User       string
	Password   string
	Integrated bool
	TrustCert  bool
	Port       int
}

// Session is the minimal contract the core needs from an open
// connection: the ability to run a query and stream back rows.
type Session interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Open builds a sqlserver:// DSN and opens a connection pool capped
// at one open connection, matching the single-threaded ingestion
// model spec.md §5 mandates (one logical task drives ingestion).
func Open(cfg Config) (*sql.DB, error) {
	dsn := buildDSN(cfg)

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbsession: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbsession: ping: %w", err)
	}
	return db, nil
}

func buildDSN(cfg Config) string {
	port := cfg.Port
	if port == 0 {
		port = 1433
	}

	query := url.Values{}
	if cfg.Database != "" {
		query.Set("database", cfg.Database)
	}
	if cfg.TrustCert {
		query.Set("TrustServerCertificate", "true")
	}
	if cfg.Integrated {
		query.Set("integratedSecurity", "sspi")
	}

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     fmt.Sprintf("%s:%d", cfg.Server, port),
		RawQuery: query.Encode(),
	}
	if !cfg.Integrated {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}
