package postgres

import (
	"database/sql"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

var (
	init2403 = domain.Month{Year: 2024, Month: 3}
	tgt2405  = domain.Month{Year: 2024, Month: 5}
)

func TestRecordArgs_MemberScore(t *testing.T) {
	member := 3
	rec := domain.NewScoreRecord(domain.MetricACC, "t2m", "EA", init2403, tgt2405, 2, &member, "", 0.42)
	rec.GeneratedAt = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	args := recordArgs(rec)
	require.Len(t, args, strings.Count(insertRecord, "$"))
	assert.Equal(t, rec.ID, args[0])
	assert.Equal(t, "acc", args[1])
	assert.Equal(t, 202403, args[4])
	assert.Equal(t, 202405, args[5])
	assert.Equal(t, 2, args[6])
	assert.Equal(t, sql.NullInt64{Int64: 3, Valid: true}, args[7])
	assert.Equal(t, sql.NullString{}, args[8])
	assert.Equal(t, sql.NullFloat64{Float64: 0.42, Valid: true}, args[9])
	assert.Equal(t, rec.GeneratedAt, args[10])
}

func TestRecordArgs_NullsForMissingParts(t *testing.T) {
	rec := domain.NewScoreRecord(domain.MetricAUC, "t2m", "GL", init2403, tgt2405, 2, nil, "AN", math.NaN())

	args := recordArgs(rec)
	assert.False(t, args[7].(sql.NullInt64).Valid)
	assert.Equal(t, sql.NullString{String: "AN", Valid: true}, args[8])
	assert.False(t, args[9].(sql.NullFloat64).Valid)
}

func TestSchema_KeyedByRecordID(t *testing.T) {
	assert.Contains(t, schema, "id           TEXT PRIMARY KEY")
	assert.Contains(t, insertRecord, "ON CONFLICT (id) DO NOTHING")
}

func TestDescribe(t *testing.T) {
	plain := errors.New("connection refused")
	assert.Equal(t, plain, describe(plain))

	pqErr := &pq.Error{Code: "23505", Message: "duplicate key"}
	err := describe(pqErr)
	assert.Contains(t, err.Error(), "unique_violation")
	var target *pq.Error
	assert.ErrorAs(t, err, &target)
}
