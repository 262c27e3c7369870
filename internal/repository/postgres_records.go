package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"energo-data/internal/domain"

	"github.com/lib/pq"
)

// PostgresRecordsRepository 用电记录Repository实现（consumption_records 表）
type PostgresRecordsRepository struct {
	db *sql.DB
}

// NewPostgresRecordsRepository 创建用电记录Repository
func NewPostgresRecordsRepository(db *sql.DB) *PostgresRecordsRepository {
	return &PostgresRecordsRepository{db: db}
}

// 确保实现了接口
var _ RecordsRepository = (*PostgresRecordsRepository)(nil)

var recordColumns = "account_id, is_commercial, address, building_type, rooms_count, residents_count, total_area, " +
	strings.Join(monthColumns[:], ", ")

// ListRecords 查询全部记录
func (r *PostgresRecordsRepository) ListRecords(ctx context.Context) ([]domain.ConsumptionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM consumption_records ORDER BY account_id`
	return r.queryRecords(ctx, "list records", query)
}

// GetRecord 根据 account_id 获取记录
func (r *PostgresRecordsRepository) GetRecord(ctx context.Context, accountID int64) (*domain.ConsumptionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM consumption_records WHERE account_id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storageError("get record", fmt.Errorf("failed to get record: %w", err))
	}
	return rec, nil
}

// GetRecords 批量查询（不存在的 account_id 忽略）
func (r *PostgresRecordsRepository) GetRecords(ctx context.Context, accountIDs []int64) ([]domain.ConsumptionRecord, error) {
	if len(accountIDs) == 0 {
		return []domain.ConsumptionRecord{}, nil
	}
	query := `SELECT ` + recordColumns + ` FROM consumption_records WHERE account_id = ANY($1) ORDER BY account_id`
	return r.queryRecords(ctx, "get records", query, pq.Array(accountIDs))
}

// ListUnclassified 待分类记录
func (r *PostgresRecordsRepository) ListUnclassified(ctx context.Context) ([]domain.ConsumptionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM consumption_records
		WHERE is_commercial IS NULL AND address IS NOT NULL AND address <> ''
		ORDER BY account_id`
	return r.queryRecords(ctx, "list unclassified", query)
}

// UpsertRecords INSERT ... ON CONFLICT 整体替换，单事务，失败全部回滚
func (r *PostgresRecordsRepository) UpsertRecords(ctx context.Context, records []domain.ConsumptionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageError("upsert records", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertRecordSQL)
	if err != nil {
		return 0, storageError("upsert records", fmt.Errorf("failed to prepare upsert: %w", err))
	}
	defer stmt.Close()

	affected := 0
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, recordArgs(rec)...); err != nil {
			return 0, storageError("upsert records", fmt.Errorf("failed to upsert account %d: %w", rec.AccountID, err))
		}
		affected++
	}

	if err := tx.Commit(); err != nil {
		return 0, storageError("upsert records", fmt.Errorf("failed to commit: %w", err))
	}
	return affected, nil
}

const updateClassificationSQL = `UPDATE consumption_records
	SET is_commercial = $2, updated_at = CURRENT_TIMESTAMP
	WHERE account_id = $1 AND is_commercial IS NULL AND address = $3`

// UpdateClassifications 回填分类，单事务；并发上传写入的新记录不会被覆盖
func (r *PostgresRecordsRepository) UpdateClassifications(ctx context.Context, updates []domain.Classification) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageError("update classifications", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, updateClassificationSQL)
	if err != nil {
		return 0, storageError("update classifications", fmt.Errorf("failed to prepare update: %w", err))
	}
	defer stmt.Close()

	affected := 0
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.AccountID, u.IsCommercial, u.Address)
		if err != nil {
			return 0, storageError("update classifications", fmt.Errorf("failed to update account %d: %w", u.AccountID, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, storageError("update classifications", fmt.Errorf("failed to read rows affected: %w", err))
		}
		affected += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageError("update classifications", fmt.Errorf("failed to commit: %w", err))
	}
	return affected, nil
}

var upsertRecordSQL = buildUpsertRecordSQL()

func buildUpsertRecordSQL() string {
	cols := strings.Split(recordColumns, ", ")
	placeholders := make([]string, len(cols))
	sets := make([]string, 0, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c != "account_id" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	return fmt.Sprintf(`INSERT INTO consumption_records (%s) VALUES (%s)
		ON CONFLICT (account_id) DO UPDATE SET %s`,
		recordColumns, strings.Join(placeholders, ", "), strings.Join(sets, ", "))
}

func recordArgs(rec domain.ConsumptionRecord) []any {
	args := []any{
		rec.AccountID,
		nullBool(rec.IsCommercial),
		nullString(rec.Address),
		nullString(rec.BuildingType),
		nullInt(rec.RoomsCount),
		nullInt(rec.ResidentsCount),
		nullFloat(rec.TotalArea),
	}
	for _, v := range rec.Consumption {
		args = append(args, v)
	}
	return args
}

func (r *PostgresRecordsRepository) queryRecords(ctx context.Context, op, query string, args ...any) ([]domain.ConsumptionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(op, fmt.Errorf("failed to query records: %w", err))
	}
	defer rows.Close()

	out := []domain.ConsumptionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storageError(op, fmt.Errorf("failed to scan record: %w", err))
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(op, fmt.Errorf("failed to iterate records: %w", err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.ConsumptionRecord, error) {
	var (
		rec          domain.ConsumptionRecord
		isCommercial sql.NullBool
		address      sql.NullString
		buildingType sql.NullString
		rooms        sql.NullInt64
		residents    sql.NullInt64
		totalArea    sql.NullFloat64
	)
	dest := []any{&rec.AccountID, &isCommercial, &address, &buildingType, &rooms, &residents, &totalArea}
	for i := range rec.Consumption {
		dest = append(dest, &rec.Consumption[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if isCommercial.Valid {
		b := isCommercial.Bool
		rec.IsCommercial = &b
	}
	if address.Valid {
		s := address.String
		rec.Address = &s
	}
	if buildingType.Valid {
		s := buildingType.String
		rec.BuildingType = &s
	}
	if rooms.Valid {
		n := int(rooms.Int64)
		rec.RoomsCount = &n
	}
	if residents.Valid {
		n := int(residents.Int64)
		rec.ResidentsCount = &n
	}
	if totalArea.Valid {
		f := totalArea.Float64
		rec.TotalArea = &f
	}
	return &rec, nil
}

func nullBool(p *bool) sql.NullBool {
	if p == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *p, Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
