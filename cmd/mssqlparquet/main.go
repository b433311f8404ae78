// Command mssqlparquet runs one ad-hoc SQL Server query and streams
// its result set into a single Parquet file. CLI parsing, connection
// management, and the Parquet container format itself sit outside the
// core the rest of this module implements (internal/catalog,
// internal/schema, internal/rowbuffer, internal/encode,
// internal/writer); this file only wires them together, the way the
// teacher's src/main.go wires config, store, and generator.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	gschema "github.com/apache/arrow-go/v18/parquet/schema"
	"github.com/schollz/progressbar/v3"

	"mssqlparquet/internal/catalog"
	"mssqlparquet/internal/config"
	"mssqlparquet/internal/dbsession"
	"mssqlparquet/internal/rowbuffer"
	"mssqlparquet/internal/schema"
	"mssqlparquet/internal/sink"
	"mssqlparquet/internal/util"
	"mssqlparquet/internal/writer"
)

type paramFlags []string

func (p *paramFlags) String() string { return strings.Join(*p, ",") }
func (p *paramFlags) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	var (
		cfgPath     = flag.String("cfg", "", "path to a TOML config file")
		server      = flag.String("server", "", "SQL Server host (overrides config)")
		database    = flag.String("database", "", "database name (overrides config)")
		user        = flag.String("user", "", "login user (overrides config)")
		password    = flag.String("password", "", "login password (overrides config)")
		queryText   = flag.String("query", "", "inline SQL query text (overrides config)")
		queryFile   = flag.String("query-file", "", "path to a .sql file (overrides config)")
		out         = flag.String("out", "", "output Parquet file path (overrides config)")
		compression = flag.String("compression", "", "output compression codec (overrides config)")
	)
	var params paramFlags
	flag.Var(&params, "param", "bind parameter in name=value form, repeatable")
	flag.Parse()

	cfg := loadConfig(*cfgPath)
	applyFlagOverrides(&cfg, *server, *database, *user, *password, *queryText, *queryFile, *out, *compression)

	if err := config.Normalize(&cfg); err != nil {
		log.Fatalf("mssqlparquet: %v", err)
	}
	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("mssqlparquet: %v", err)
	}

	queryArgs, err := bindArgs(params)
	if err != nil {
		log.Fatalf("mssqlparquet: %v", err)
	}

	queryText2, err := resolveQueryText(cfg)
	if err != nil {
		log.Fatalf("mssqlparquet: %v", err)
	}

	start := time.Now()
	if err := run(cfg, queryText2, queryArgs); err != nil {
		log.Fatalf("mssqlparquet: %v", err)
	}
	fmt.Printf("wrote %s in %s\n", cfg.Output.Path, time.Since(start))
}

func run(cfg config.Config, query string, args []any) error {
	ctx := context.Background()

	db, err := dbsession.Open(dbsession.Config{
		Server:     cfg.Connection.Server,
		Database:   cfg.Connection.Database,
		User:       cfg.Connection.User,
		Password:   cfg.Connection.Password,
		Integrated: cfg.Connection.Integrated,
		TrustCert:  cfg.Connection.TrustCert,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	prober := catalog.New(db)
	entries, err := prober.Probe(ctx, query, args)
	if err != nil {
		return err
	}
	log.Printf("mssqlparquet: catalog resolved %d columns", len(entries))

	plan, root, err := schema.Translate(entries)
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mssqlparquet: running query: %w", err)
	}
	defer rows.Close()

	progress := util.NewRowProgressLogger(os.Stdout, "ingesting", 5*time.Second)
	buf := rowbuffer.New(len(plan.Columns))
	if err := rowbuffer.Ingest(rows, plan, buf); err != nil {
		progress.Stop()
		return err
	}
	progress.AddRows(int64(buf.RowCount()))
	progress.Stop()
	log.Printf("mssqlparquet: ingested %d rows", buf.RowCount())

	driver := writer.Driver{
		Compression:      cfg.Output.Compression,
		ParallelValidate: cfg.Output.ParallelEncode,
		PageSize:         cfg.Output.PageSizeBytes,
	}

	if cfg.Output.S3 != nil || cfg.Output.GCS != nil {
		return writeViaSink(ctx, driver, cfg, plan, root, buf)
	}
	return driver.WriteFile(cfg.Output.Path, plan, root, buf)
}

// writeViaSink routes output through the pluggable storage backend
// (S3/GCS) instead of a direct local file, per internal/sink's
// adaptation of the teacher's config.GetStore. A byte spinner advances
// with every chunk written, since the final output size isn't known
// ahead of a streaming write.
func writeViaSink(ctx context.Context, driver writer.Driver, cfg config.Config, plan *schema.SchemaPlan, root *gschema.GroupNode, buf *rowbuffer.Buffer) error {
	s, err := sink.Open(ctx, cfg.Output.Path, cfg.Output)
	if err != nil {
		return err
	}

	bar := util.NewByteSpinner(os.Stdout, "writing")
	runErr := driver.Run(&spinnerWriter{Sink: s, bar: bar}, plan, root, buf)
	bar.Finish()

	if closeErr := s.Close(); closeErr != nil && runErr == nil {
		return closeErr
	}
	return runErr
}

// spinnerWriter advances bar by every chunk the Writer Driver hands to
// the sink, the synchronous analogue of the teacher's cur-prev polling
// loop (operations.go) — no separate goroutine is needed since the
// driver writes from a single goroutine already.
type spinnerWriter struct {
	*sink.Sink
	bar *progressbar.ProgressBar
}

func (s *spinnerWriter) Write(p []byte) (int, error) {
	n, err := s.Sink.Write(p)
	s.bar.Add64(int64(n))
	return n, err
}

func loadConfig(path string) config.Config {
	var cfg config.Config
	if path == "" {
		return cfg
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		log.Fatalf("mssqlparquet: loading config %s: %v", path, err)
	}
	return cfg
}

func applyFlagOverrides(cfg *config.Config, server, database, user, password, queryText, queryFile, out, compression string) {
	if server != "" {
		cfg.Connection.Server = server
	}
	if database != "" {
		cfg.Connection.Database = database
	}
	if user != "" {
		cfg.Connection.User = user
	}
	if password != "" {
		cfg.Connection.Password = password
	}
	if queryText != "" {
		cfg.Query.Text = queryText
		cfg.Query.File = ""
	}
	if queryFile != "" {
		cfg.Query.File = queryFile
		cfg.Query.Text = ""
	}
	if out != "" {
		cfg.Output.Path = out
	}
	if compression != "" {
		cfg.Output.Compression = compression
	}
}

func resolveQueryText(cfg config.Config) (string, error) {
	if cfg.Query.Text != "" {
		return cfg.Query.Text, nil
	}
	data, err := os.ReadFile(cfg.Query.File)
	if err != nil {
		return "", fmt.Errorf("mssqlparquet: reading query file %s: %w", cfg.Query.File, err)
	}
	return string(data), nil
}

// bindArgs parses "name=value" -param flags into sql.Named arguments.
func bindArgs(params paramFlags) ([]any, error) {
	args := make([]any, 0, len(params))
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("mssqlparquet: -param %q is not in name=value form", p)
		}
		args = append(args, sql.Named(name, value))
	}
	return args, nil
}
