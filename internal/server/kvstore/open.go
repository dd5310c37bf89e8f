package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/extsession/internal/filex"
	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// goose keeps its base FS, dialect and logger in package globals.
var (
	gooseMu         sync.Mutex
	migrationLogger = logging.Nop()
)

// SetMigrationLogger routes goose's progress output through l at debug
// level instead of the standard log package.
func SetMigrationLogger(l logging.Logger) {
	if l == nil {
		l = logging.Nop()
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	migrationLogger = l.With("module", "migrations")
}

type gooseLogger struct {
	logger logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf is only reached from goose's command-line paths; it never exits here.
func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// runMigrations applies the embedded migrations of dialect d to db.
func runMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(gooseLogger{logger: migrationLogger})
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(d.gooseDialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, d.migrationsDir); err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", d.name, err)
	}
	return nil
}

// Open connects to the backend named by driver, migrates SQL schemas and
// returns a Store namespaced by prefix.
//
// For sqlite the DSN is a file path (or ":memory:"), for postgres any DSN
// pgx accepts, for redis a redis:// URL.
func Open(ctx context.Context, driver, dsn, prefix string, opts ...Option) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3":
		if path := sqliteFilePath(dsn); path != "" {
			if _, err := filex.EnsureParentDir(path); err != nil {
				return nil, fmt.Errorf("failed to prepare sqlite directory: %w", err)
			}
		}
		return openSQL(ctx, "sqlite", sqliteDSN(dsn), sqliteDialect, prefix, opts...)
	case DriverPostgres, "pgx":
		return openSQL(ctx, "pgx", dsn, postgresDialect, prefix, opts...)
	case DriverRedis:
		return openRedis(ctx, dsn, prefix)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

func openSQL(ctx context.Context, sqlDriver, dsn string, d dialect, prefix string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.name, err)
	}
	if d.name == DriverSQLite {
		// One writer at a time; also keeps ":memory:" on a single database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", d.name, err)
	}
	if err := runMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return newSQLStore(db, db.Close, d, prefix, opts...), nil
}

// sqliteDSN adds a busy timeout unless the DSN sets its own pragmas.
func sqliteDSN(dsn string) string {
	if dsn == "" || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// sqliteFilePath returns the file behind a sqlite DSN, or "" for in-memory
// databases.
func sqliteFilePath(dsn string) string {
	if dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func openRedis(ctx context.Context, dsn, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(rdb, prefix), nil
}
