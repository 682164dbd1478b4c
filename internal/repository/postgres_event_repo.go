package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// eventColumns はSELECT対象のカラム。scanEventの順序と一致させる。
const eventColumns = `id, title, description, category, event_date, event_time, location,
	price, capacity, image_url, organizer_id, organizer_name, features, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// ListAll は全イベントを開催日順に返す。
func (r *PostgresEventRepo) ListAll(ctx context.Context) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY event_date, created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return collectEvents(rows)
}

// ListByOrganizer は指定主催者のイベントを開催日順に返す。
func (r *PostgresEventRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer_id = $1 ORDER BY event_date, created_at`,
		organizerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizer events: %w", err)
	}
	return collectEvents(rows)
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	return event, nil
}

// Create はイベントを作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, title, description, category, event_date, event_time, location,
			price, capacity, image_url, organizer_id, organizer_name, features, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.Title, e.Description, e.Category, e.Date, e.Time, e.Location,
		e.Price, e.Capacity, e.ImageURL, e.OrganizerID, e.OrganizerName, e.Features, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// Update はイベントを更新する。主催者IDが一致しない場合も対象なしとして扱う。
func (r *PostgresEventRepo) Update(ctx context.Context, e *model.Event) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events
		 SET title = $3, description = $4, category = $5, event_date = $6, event_time = $7,
		     location = $8, price = $9, capacity = $10, image_url = $11, organizer_name = $12,
		     features = $13, updated_at = $14
		 WHERE id = $1 AND organizer_id = $2`,
		e.ID, e.OrganizerID, e.Title, e.Description, e.Category, e.Date, e.Time,
		e.Location, e.Price, e.Capacity, e.ImageURL, e.OrganizerName, e.Features, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return requireAffected(result)
}

// Delete は指定主催者のイベントを削除する。
func (r *PostgresEventRepo) Delete(ctx context.Context, id, organizerID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE id = $1 AND organizer_id = $2`,
		id, organizerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return requireAffected(result)
}

// collectEvents は*sql.Rowsを全件読み込んで閉じる。
func collectEvents(rows *sql.Rows) ([]*model.Event, error) {
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// scanEvent は1行をmodel.Eventに読み込む。
func scanEvent(s rowScanner) (*model.Event, error) {
	e := &model.Event{}
	err := s.Scan(
		&e.ID, &e.Title, &e.Description, &e.Category, &e.Date, &e.Time, &e.Location,
		&e.Price, &e.Capacity, &e.ImageURL, &e.OrganizerID, &e.OrganizerName, &e.Features,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
