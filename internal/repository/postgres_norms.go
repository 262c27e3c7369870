package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"energo-data/internal/domain"
)

// PostgresNormsRepository 用电标准Repository实现（norm_buckets 表）
type PostgresNormsRepository struct {
	db *sql.DB
}

// NewPostgresNormsRepository 创建用电标准Repository
func NewPostgresNormsRepository(db *sql.DB) *PostgresNormsRepository {
	return &PostgresNormsRepository{db: db}
}

var _ NormsRepository = (*PostgresNormsRepository)(nil)

var normColumns = "rooms, residents, " + strings.Join(monthColumns[:], ", ")

func (r *PostgresNormsRepository) ListNormBuckets(ctx context.Context) ([]domain.NormBucket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+normColumns+` FROM norm_buckets ORDER BY rooms, residents`)
	if err != nil {
		return nil, storageError("list norms", fmt.Errorf("failed to query norm buckets: %w", err))
	}
	defer rows.Close()

	out := []domain.NormBucket{}
	for rows.Next() {
		var b domain.NormBucket
		dest := []any{&b.RoomsCount, &b.ResidentsCount}
		for i := range b.Consumption {
			dest = append(dest, &b.Consumption[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, storageError("list norms", fmt.Errorf("failed to scan norm bucket: %w", err))
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list norms", fmt.Errorf("failed to iterate norm buckets: %w", err))
	}
	return out, nil
}

// ReplaceNormBuckets 清空后重新插入；主键冲突（重复键）整体回滚
func (r *PostgresNormsRepository) ReplaceNormBuckets(ctx context.Context, buckets []domain.NormBucket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("replace norms", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM norm_buckets`); err != nil {
		return storageError("replace norms", fmt.Errorf("failed to clear norm buckets: %w", err))
	}

	placeholders := make([]string, 2+domain.MonthsPerYear)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO norm_buckets (%s) VALUES (%s)`, normColumns, strings.Join(placeholders, ", "))

	for _, b := range buckets {
		args := []any{b.RoomsCount, b.ResidentsCount}
		for _, v := range b.Consumption {
			args = append(args, v)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return storageError("replace norms", fmt.Errorf("failed to insert norm bucket rooms=%d residents=%d: %w", b.RoomsCount, b.ResidentsCount, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("replace norms", fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}
