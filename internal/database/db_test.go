package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xrak-labs/sessiond/internal/models"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	user := models.User{Email: "user@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	require.NotZero(t, user.ID)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestOpenSQLiteFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.sqlite")

	db, err := Open(Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	db, err := Open(Config{DSN: "file::memory:"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "app", Password: "secret", Name: "sessiond"})
	require.NoError(t, err)
	require.Equal(t, "app:secret@tcp(127.0.0.1:3306)/sessiond?charset=utf8mb4&parseTime=True&loc=Local", dsn)

	dsn, err = buildMySQLDSN(Config{DSN: "custom-dsn"})
	require.NoError(t, err)
	require.Equal(t, "custom-dsn", dsn)

	_, err = buildMySQLDSN(Config{User: "app"})
	require.Error(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{Host: "db.internal", Port: 5433, User: "app", Password: "secret", Name: "sessiond"})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5433 user=app dbname=sessiond sslmode=disable password=secret", dsn)

	_, err = buildPostgresDSN(Config{Name: "sessiond"})
	require.Error(t, err)
}

func TestAutoMigrateNilDB(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
}
