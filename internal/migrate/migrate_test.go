package migrate

import (
	"io/fs"
	"regexp"
	"strconv"
	"testing"

	"shopcore/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numericColumn = regexp.MustCompile(`NUMERIC\((\d+),\s*(\d+)\)`)

func TestSchema_MoneyScaleFitsCurrencies(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "sql/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	widest := domain.CurrencyExponent("KWD")
	found := 0
	for _, name := range files {
		src, err := fs.ReadFile(migrationsFS, name)
		require.NoError(t, err)
		for _, m := range numericColumn.FindAllStringSubmatch(string(src), -1) {
			scale, _ := strconv.Atoi(m[2])
			assert.GreaterOrEqual(t, scale, int(widest), "%s: %s loses minor units", name, m[0])
			found++
		}
	}
	assert.Positive(t, found)
}

func TestMigrations_Paired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "sql/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "sql/*.down.sql")
	require.NoError(t, err)
	assert.Equal(t, len(ups), len(downs))
}
