package migration

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vetsync/migrations"
)

// MockMigrator — мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/1_init.up.sql":   {Data: []byte("CREATE TABLE t (id INTEGER);")},
		"sql/1_init.down.sql": {Data: []byte("DROP TABLE t;")},
	}
}

func TestMigration_Up_Success(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(nil, nil)

	var gotURL string
	engine := func(src source.Driver, db string) (Migrator, error) {
		gotURL = db
		return mockM, nil
	}

	err := NewMigration(testFS(), "sql", "sqlite3:///tmp/x.db", engine).Up()

	assert.NoError(t, err)
	assert.Equal(t, "sqlite3:///tmp/x.db", gotURL)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_NoChange(t *testing.T) {
	mockM := new(MockMigrator)
	// ErrNoChange не должна считаться ошибкой
	mockM.On("Up").Return(migrate.ErrNoChange)
	mockM.On("Close").Return(nil, nil)

	engine := func(source.Driver, string) (Migrator, error) { return mockM, nil }

	assert.NoError(t, NewMigration(testFS(), "sql", "", engine).Up())
}

func TestMigration_Up_Errors(t *testing.T) {
	upErr := errors.New("dirty database")
	closeErr := errors.New("close db")

	tests := []struct {
		name     string
		upErr    error
		dbErr    error
		contains []string
	}{
		{name: "up fails", upErr: upErr, contains: []string{"dirty database"}},
		{name: "close fails", dbErr: closeErr, contains: []string{"close db"}},
		{name: "both fail", upErr: upErr, dbErr: closeErr, contains: []string{"dirty database", "close db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockM := new(MockMigrator)
			mockM.On("Up").Return(tt.upErr)
			mockM.On("Close").Return(nil, tt.dbErr)
			engine := func(source.Driver, string) (Migrator, error) { return mockM, nil }

			err := NewMigration(testFS(), "sql", "", engine).Up()

			require.Error(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestMigration_Up_EngineError(t *testing.T) {
	engine := func(source.Driver, string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	err := NewMigration(testFS(), "sql", "", engine).Up()

	assert.EqualError(t, err, "engine crash")
}

func TestMigration_Up_MissingDir(t *testing.T) {
	engine := func(source.Driver, string) (Migrator, error) {
		t.Fatal("engine must not be called")
		return nil, nil
	}

	err := NewMigration(testFS(), "absent", "", engine).Up()

	assert.Error(t, err)
}

func TestEmbeddedMigrations_Parse(t *testing.T) {
	for _, tc := range []struct {
		name string
		dir  string
	}{
		{"client", migrations.ClientDir},
		{"server", migrations.ServerDir},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fsys := migrations.Client
			if tc.dir == migrations.ServerDir {
				fsys = migrations.Server
			}

			var first uint
			engine := func(src source.Driver, _ string) (Migrator, error) {
				v, err := src.First()
				require.NoError(t, err)
				first = v
				m := new(MockMigrator)
				m.On("Up").Return(nil)
				m.On("Close").Return(nil, nil)
				return m, nil
			}

			require.NoError(t, NewMigration(fsys, tc.dir, "", engine).Up())
			assert.Equal(t, uint(1), first)
		})
	}
}

func TestSQLiteURL(t *testing.T) {
	assert.Equal(t, "sqlite3:///var/lib/vetsync/local.db", SQLiteURL("/var/lib/vetsync/local.db"))
}
