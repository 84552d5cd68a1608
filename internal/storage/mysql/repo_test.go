package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hringest/internal/errs"
	"hringest/internal/records"
	"hringest/internal/storage"
)

func TestAdapterUsesNewRepositoryHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u:p@tcp(db:3306)/hr"})
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(db:3306)/hr", gotCfg.DSN)
	assert.Equal(t, "mysql", repo.Kind())

	_, isBulk := repo.(storage.BulkCopier)
	assert.False(t, isBulk)

	repo.Close()
	assert.True(t, closed)
}

func TestNormalizeDSN(t *testing.T) {
	t.Parallel()

	got, err := normalizeDSN("u:p@tcp(db:3306)/hr")
	require.NoError(t, err)
	assert.Contains(t, got, "parseTime=true")

	_, err = normalizeDSN("")
	assert.Equal(t, errs.KindConfiguration, errs.Kind(err))

	_, err = normalizeDSN("u:p@tcp(db:3306)hr")
	assert.Equal(t, errs.KindConfiguration, errs.Kind(err))
}

func TestRowUpsert_OnDuplicateKey(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := newWithDB(db, Config{})
	tb := storage.TableFor(records.Employees)
	hired := time.Date(2021, 7, 27, 18, 2, 8, 0, time.FixedZone("", 2*3600))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO `employees` (`id`, `name`, `department_id`, `job_id`, `hire_date`) VALUES (?, ?, ?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE `name` = VALUES(`name`), `department_id` = VALUES(`department_id`), " +
			"`job_id` = VALUES(`job_id`), `hire_date` = VALUES(`hire_date`)")).
		WithArgs(int64(1), "Ada", int64(1), int64(2), hired.UTC()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := r.RowUpsert(context.Background(), tb, [][]any{{int64(1), "Ada", int64(1), int64(2), hired}}, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStyle(t *testing.T) {
	t.Parallel()

	stmts, err := Style.CreateSchema()
	require.NoError(t, err)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS `departments`")
	assert.Contains(t, stmts[2], "`hire_date` DATETIME(6)")
	assert.Contains(t, stmts[2], "FOREIGN KEY (`job_id`) REFERENCES `jobs` (`id`)")
}
