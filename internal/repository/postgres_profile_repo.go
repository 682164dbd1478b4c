package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	profile := &model.Profile{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, role, created_at, updated_at FROM profiles WHERE id = $1`,
		userID,
	).Scan(&profile.UserID, &profile.FullName, &role, &profile.CreatedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	profile.Role = model.Role(role)

	return profile, nil
}

// Upsert はプロフィールを作成または更新する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, full_name, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET full_name = EXCLUDED.full_name, role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`,
		profile.UserID, profile.FullName, string(profile.Role), profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// CountByRole はロールごとのプロフィール数を返す。
func (r *PostgresProfileRepo) CountByRole(ctx context.Context) (map[model.Role]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role, count(*) FROM profiles GROUP BY role`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Role]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("failed to scan profile count: %w", err)
		}
		counts[model.Role(role)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile counts: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
