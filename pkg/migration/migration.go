package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Maintenance commands accepted by Runner.Run.
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandForce   = "force"
	CommandVersion = "version"
)

var (
	ErrUnknownCommand = errors.New("unknown migration command")
	ErrDirty          = errors.New("database schema is dirty")
)

// Runner applies the SQL files in a migrations directory to one database.
type Runner struct {
	sourceURL   string
	databaseURL string
	logger      *zap.Logger
}

func NewRunner(migrationsPath, databaseURL string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		sourceURL:   "file://" + strings.TrimPrefix(migrationsPath, "file://"),
		databaseURL: databaseURL,
		logger:      logger.With(zap.String("component", "migration")),
	}
}

// EnsureLatest is the start-up path: refuse a dirty schema, otherwise apply
// everything pending.
func (r *Runner) EnsureLatest() error {
	from, dirty, err := r.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w at version %d, run with -migrate=force", ErrDirty, from)
	}
	if err := r.Up(); err != nil {
		return err
	}
	to, _, err := r.Version()
	if err != nil {
		return err
	}
	r.logger.Info("[Migration] schema ready", zap.Uint("from_version", from), zap.Uint("to_version", to))
	return nil
}

// Run executes one maintenance command. version is only read by force.
func (r *Runner) Run(command string, version int) error {
	switch command {
	case CommandUp:
		return r.Up()
	case CommandDown:
		return r.Down()
	case CommandForce:
		return r.Force(version)
	case CommandVersion:
		v, dirty, err := r.Version()
		if err != nil {
			return err
		}
		r.logger.Info("[Migration] current version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

func (r *Runner) Up() error {
	return r.with(func(m *migrate.Migrate) error {
		return ignoreNoChange(m.Up())
	})
}

// Down reverts the most recent migration only.
func (r *Runner) Down() error {
	return r.with(func(m *migrate.Migrate) error {
		return ignoreNoChange(m.Steps(-1))
	})
}

// Force records version as applied and clears the dirty flag without
// running any SQL.
func (r *Runner) Force(version int) error {
	r.logger.Warn("[Migration] forcing version", zap.Int("version", version))
	return r.with(func(m *migrate.Migrate) error {
		return m.Force(version)
	})
}

// Version reports 0 for a database that has never been migrated.
func (r *Runner) Version() (version uint, dirty bool, err error) {
	err = r.with(func(m *migrate.Migrate) error {
		version, dirty, err = m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	})
	return version, dirty, err
}

func (r *Runner) with(fn func(*migrate.Migrate) error) error {
	db, err := sql.Open("postgres", r.databaseURL)
	if err != nil {
		return fmt.Errorf("migration: open database: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("migration: postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(r.sourceURL, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("migration: load %s: %w", r.sourceURL, err)
	}
	m.Log = zapLogger{r.logger.Sugar()}
	defer m.Close()

	return fn(m)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// zapLogger adapts zap to migrate.Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Printf(format string, v ...interface{}) {
	l.s.Infof("[Migration] "+strings.TrimSuffix(format, "\n"), v...)
}

func (l zapLogger) Verbose() bool { return false }
