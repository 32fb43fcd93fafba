// Package datastore persists analyses and their detections with GORM.
// SQLite is the default backend; MySQL is available for shared deployments.
package datastore

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rcanpahali/BirdNet/internal/conf"
	"github.com/rcanpahali/BirdNet/internal/logger"
)

const (
	// slowQueryThreshold is where the GORM adapter starts warning about queries.
	slowQueryThreshold = 200 * time.Millisecond

	dbDirPermissions = 0o755

	mysqlConnectTimeout = 10 * time.Second
	mysqlMaxIdleConns   = 10
	mysqlMaxOpenConns   = 50
	mysqlConnMaxLife    = time.Hour
)

// Manager owns one database connection and its schema.
type Manager interface {
	// Initialize applies the schema. It is idempotent.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host/database for MySQL).
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// NewManager opens the backend selected by settings.Type.
func NewManager(settings *conf.DatabaseSettings) (Manager, error) {
	if settings == nil {
		return nil, validationError("database settings cannot be nil", "database", nil)
	}
	switch settings.Type {
	case "", "sqlite":
		return NewSQLiteManager(settings.Path)
	case "mysql":
		return NewMySQLManager(&settings.MySQL)
	default:
		return nil, validationError("unsupported database type", "database.type", settings.Type)
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger(), slowQueryThreshold),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// migrateSchema creates both tables and the cascading foreign key if missing.
func migrateSchema(db *gorm.DB) error {
	return db.AutoMigrate(&Analysis{}, &Detection{})
}

// SQLiteManager handles the SQLite database file.
type SQLiteManager struct {
	db     *gorm.DB
	dbPath string
}

// NewSQLiteManager opens or creates the database at dbPath, creating the
// containing directories first.
func NewSQLiteManager(dbPath string) (*SQLiteManager, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, validationError("sqlite path cannot be empty", "database.path", dbPath)
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, dbDirPermissions); err != nil {
			return nil, dbError(err, "create_db_dir", "path", dir)
		}
	}

	// Build DSN with recommended SQLite pragmas
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, dbError(err, "open_sqlite", "path", dbPath)
	}

	return &SQLiteManager{db: db, dbPath: dbPath}, nil
}

// Initialize creates the schema.
func (m *SQLiteManager) Initialize() error {
	if err := migrateSchema(m.db); err != nil {
		return dbError(err, "migrate_schema", "backend", "sqlite", "path", m.dbPath)
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *SQLiteManager) DB() *gorm.DB { return m.db }

// Path returns the database file path.
func (m *SQLiteManager) Path() string { return m.dbPath }

// IsMySQL returns false.
func (m *SQLiteManager) IsMySQL() bool { return false }

// Close closes the database connection.
func (m *SQLiteManager) Close() error {
	return closeGorm(m.db)
}

// MySQLManager handles a MySQL database.
type MySQLManager struct {
	db       *gorm.DB
	location string
}

// NewMySQLManager connects to MySQL using settings.
func NewMySQLManager(settings *conf.MySQLSettings) (*MySQLManager, error) {
	dsn := mysqlDSN(settings)

	db, err := gorm.Open(gormmysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, dbError(err, "open_mysql", "host", settings.Host, "database", settings.Database)
	}

	if err := tuneMySQLPool(db); err != nil {
		return nil, err
	}

	return &MySQLManager{
		db:       db,
		location: fmt.Sprintf("%s:%d/%s", settings.Host, settings.Port, settings.Database),
	}, nil
}

// tuneMySQLPool applies the connection pool limits. The opened handle is
// closed when the pool cannot be reached.
func tuneMySQLPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		if closer, ok := db.ConnPool.(io.Closer); ok {
			_ = closer.Close()
		}
		return dbError(err, "get_sql_db")
	}
	sqlDB.SetMaxIdleConns(mysqlMaxIdleConns)
	sqlDB.SetMaxOpenConns(mysqlMaxOpenConns)
	sqlDB.SetConnMaxLifetime(mysqlConnMaxLife)
	return nil
}

// mysqlDSN builds the DSN with mysql.Config for proper credential escaping.
// Times are read and written as UTC.
func mysqlDSN(settings *conf.MySQLSettings) string {
	port := settings.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, strconv.Itoa(port))
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Timeout = mysqlConnectTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Initialize creates the schema.
func (m *MySQLManager) Initialize() error {
	if err := migrateSchema(m.db); err != nil {
		return dbError(err, "migrate_schema", "backend", "mysql", "location", m.location)
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB { return m.db }

// Path returns host:port/database.
func (m *MySQLManager) Path() string { return m.location }

// IsMySQL returns true.
func (m *MySQLManager) IsMySQL() bool { return true }

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	return closeGorm(m.db)
}

func closeGorm(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "get_sql_db")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}
