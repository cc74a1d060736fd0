package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMigrator implements migrator for tests.
type fakeMigrator struct {
	upErr      error
	downErr    error
	stepsErr   error
	versionVal uint
	dirty      bool
	versionErr error
}

func (m *fakeMigrator) Up() error         { return m.upErr }
func (m *fakeMigrator) Down() error       { return m.downErr }
func (m *fakeMigrator) Steps(_ int) error { return m.stepsErr }
func (m *fakeMigrator) Version() (version uint, dirty bool, err error) {
	return m.versionVal, m.dirty, m.versionErr
}

func useMigrator(t *testing.T, m migrator, err error) {
	t.Helper()
	orig := migratorFactory
	t.Cleanup(func() { migratorFactory = orig })
	migratorFactory = func(_ *sql.DB) (migrator, error) {
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"000001_catalog_cache.up.sql",
		"000001_catalog_cache.down.sql",
		"000002_audit_logs.up.sql",
		"000002_audit_logs.down.sql",
	}, names)
}

func TestMigrationFilesPaired(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)

	for _, e := range entries {
		content, err := migrations.ReadFile("migrations/" + e.Name())
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(content)), "%s is empty", e.Name())

		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			assert.Contains(t, string(content), "CREATE TABLE", e.Name())
			_, err := migrations.ReadFile("migrations/" + strings.TrimSuffix(e.Name(), ".up.sql") + ".down.sql")
			assert.NoError(t, err, "%s has no down migration", e.Name())
		case strings.HasSuffix(e.Name(), ".down.sql"):
			assert.Contains(t, string(content), "DROP TABLE", e.Name())
		}
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		m          *fakeMigrator
		factoryErr error
		wantErr    string
	}{
		{name: "success", m: &fakeMigrator{versionVal: 2}},
		{name: "no change", m: &fakeMigrator{upErr: migrate.ErrNoChange, versionVal: 2}},
		{name: "nil version", m: &fakeMigrator{versionErr: migrate.ErrNilVersion}},
		{name: "dirty", m: &fakeMigrator{versionVal: 2, dirty: true}},
		{name: "up error", m: &fakeMigrator{upErr: errors.New("up failed")}, wantErr: "running migrations"},
		{name: "version error", m: &fakeMigrator{versionErr: errors.New("boom")}, wantErr: "getting migration version"},
		{name: "factory error", factoryErr: errors.New("factory failed"), wantErr: "factory failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useMigrator(t, tt.m, tt.factoryErr)
			err := Run(nil)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVersion(t *testing.T) {
	useMigrator(t, &fakeMigrator{versionVal: 2}, nil)
	version, dirty, err := Version(nil)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	useMigrator(t, nil, errors.New("factory failed"))
	_, _, err = Version(nil)
	assert.Error(t, err)
}

func TestDownAndSteps(t *testing.T) {
	useMigrator(t, &fakeMigrator{downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}, nil)
	assert.NoError(t, Down(nil))
	assert.NoError(t, Steps(nil, 1))

	useMigrator(t, &fakeMigrator{downErr: errors.New("x"), stepsErr: errors.New("y")}, nil)
	assert.ErrorContains(t, Down(nil), "rolling back migrations")
	assert.ErrorContains(t, Steps(nil, -1), "stepping migrations")

	useMigrator(t, nil, errors.New("factory failed"))
	assert.Error(t, Down(nil))
	assert.Error(t, Steps(nil, 1))
}

// TestMigrationTablesHaveConsumers fails when a migration creates a table
// that no non-test code under pkg/ reads or writes.
func TestMigrationTablesHaveConsumers(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)

	createTableRe := regexp.MustCompile(`(?i)CREATE TABLE\s+(?:IF NOT EXISTS\s+)?(\w+)`)

	var tables []string
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		content, readErr := migrations.ReadFile("migrations/" + entry.Name())
		require.NoError(t, readErr)
		for _, m := range createTableRe.FindAllStringSubmatch(string(content), -1) {
			tables = append(tables, m[1])
		}
	}
	require.NotEmpty(t, tables)

	var goFiles []string
	require.NoError(t, collectGoSourceFiles("../../../pkg", &goFiles))
	require.NotEmpty(t, goFiles)

	var corpus strings.Builder
	for _, path := range goFiles {
		content, readErr := os.ReadFile(path) //nolint:gosec // test reads source files, not user input
		require.NoError(t, readErr)
		corpus.Write(content)  //nolint:revive // strings.Builder.Write never returns an error
		corpus.WriteByte('\n') //nolint:revive // strings.Builder.WriteByte never returns an error
	}
	source := corpus.String()

	for _, table := range tables {
		found := false
		for _, pattern := range []string{"INSERT INTO %s", "FROM %s", "UPDATE %s", "DELETE FROM %s", `Insert("%s")`, `From("%s")`} {
			if strings.Contains(source, fmt.Sprintf(pattern, table)) {
				found = true
				break
			}
		}
		assert.True(t, found,
			"table %q is created by a migration but no non-test Go code references it. "+
				"Either wire up the table or remove the migration.", table)
	}
}

// collectGoSourceFiles appends the non-test Go files under dir to dst,
// skipping this package.
func collectGoSourceFiles(dir string, dst *[]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := dir + "/" + entry.Name()
		if entry.IsDir() {
			if entry.Name() == "migrate" || entry.Name() == "vendor" {
				continue
			}
			if err := collectGoSourceFiles(path, dst); err != nil {
				return err
			}
			continue
		}
		if strings.HasSuffix(entry.Name(), ".go") && !strings.HasSuffix(entry.Name(), "_test.go") {
			*dst = append(*dst, path)
		}
	}
	return nil
}
