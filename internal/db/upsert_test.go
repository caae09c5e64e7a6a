package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsertEmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.TODO(), nil, UpsertConfig{
		Table:        "search_daily",
		Columns:      []string{"site_id", "date", "clicks"},
		ConflictKeys: []string{"site_id", "date"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsertValidation(t *testing.T) {
	rows := [][]any{{"site-1", "2026-08-01", 10}}

	_, err := BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "search_daily", ConflictKeys: []string{"site_id"}}, rows)
	assert.ErrorContains(t, err, "no columns")

	_, err = BulkUpsert(context.TODO(), nil, UpsertConfig{Table: "search_daily", Columns: []string{"site_id"}}, rows)
	assert.ErrorContains(t, err, "no conflict keys")
}

func TestBulkUpsertSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_search_daily"}, []string{"site_id", "date", "clicks"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "search_daily"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"site-1", "2026-08-01", 120},
		{"site-1", "2026-08-02", 118},
	}
	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "search_daily",
		Columns:      []string{"site_id", "date", "clicks"},
		ConflictKeys: []string{"site_id", "date"},
	}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
