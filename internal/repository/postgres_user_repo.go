package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, metadata, created_at, updated_at FROM users WHERE id = $1`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, metadata, created_at, updated_at FROM users WHERE lower(email) = lower($1)`,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	metadata, err := json.Marshal(user.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode user metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.PasswordHash, metadata, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// scanUser は1行をmodel.Userに読み込む。行がない場合はnil, nilを返す。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var metadata []byte
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &metadata, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := decodeMetadata(metadata, &user.Metadata); err != nil {
		return nil, err
	}
	return user, nil
}

// decodeMetadata はJSONBのメタデータを読み込む。NULLや空の場合はゼロ値のままにする。
func decodeMetadata(raw []byte, dst *model.UserMetadata) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode user metadata: %w", err)
	}
	return nil
}

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
