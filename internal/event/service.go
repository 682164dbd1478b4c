// Package event はイベントの一覧・詳細表示と主催者によるイベント管理を提供する。
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/magicalmoments/internal/model"
	"github.com/hitoshi/magicalmoments/internal/repository"
	"github.com/hitoshi/magicalmoments/internal/security"
)

// 変更操作の種別
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ImageProber は画像URLが実際に画像を返すかを確認する。
type ImageProber interface {
	Probe(ctx context.Context, imageURL string) error
}

// Recorder はイベント変更の結果を記録する。
type Recorder interface {
	RecordEventMutation(op, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordEventMutation(string, string) {}

// Service はイベントに関するビジネスロジックを提供する。
type Service struct {
	repo      repository.EventRepository
	sanitizer security.ContentSanitizer
	guard     security.SSRFGuard
	prober    ImageProber
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。proberがnilの場合は画像URLの疎通確認を行わない。
func NewService(
	repo repository.EventRepository,
	sanitizer security.ContentSanitizer,
	guard security.SSRFGuard,
	prober ImageProber,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		guard:     guard,
		prober:    prober,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// List は全イベントをカテゴリと検索語で絞り込んで返す。
func (s *Service) List(ctx context.Context, category, search string) ([]*model.Event, error) {
	events, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return Filter(events, category, search, s.now().Format("2006-01-02")), nil
}

// Count は登録済みイベントの総数を返す。
func (s *Service) Count(ctx context.Context) (int, error) {
	events, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return len(events), nil
}

// Get は指定IDのイベントを返す。存在しない場合はAPIErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewEventNotFoundError(id)
	}
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if e == nil {
		return nil, model.NewEventNotFoundError(id)
	}
	return e, nil
}

// ListByOrganizer は主催者自身のイベントを返す。
func (s *Service) ListByOrganizer(ctx context.Context, organizerID string) ([]*model.Event, error) {
	events, err := s.repo.ListByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizer events: %w", err)
	}
	return events, nil
}

// Create は主催者のイベントを登録する。主催者IDと主催者名はセッションから設定する。
func (s *Service) Create(ctx context.Context, organizer *model.Session, in Input) (*model.Event, error) {
	if err := s.check(ctx, in); err != nil {
		s.recorder.RecordEventMutation(OpInsert, "invalid")
		return nil, err
	}

	now := s.now()
	e := &model.Event{
		ID:        uuid.New().String(),
		CreatedAt: now,
	}
	s.apply(e, organizer, in, now)

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, s.rejected(OpInsert, e.ID, err)
	}

	s.recorder.RecordEventMutation(OpInsert, "ok")
	s.logger.Info("event created",
		slog.String("event_id", e.ID),
		slog.String("organizer_id", e.OrganizerID),
	)
	return e, nil
}

// Update は主催者自身のイベントを更新する。他の主催者のイベントは存在しないものとして扱う。
func (s *Service) Update(ctx context.Context, organizer *model.Session, id string, in Input) (*model.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, s.rejected(OpUpdate, id, repository.ErrNotFound)
	}
	if err := s.check(ctx, in); err != nil {
		s.recorder.RecordEventMutation(OpUpdate, "invalid")
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.rejected(OpUpdate, id, err)
	}
	if current == nil || current.OrganizerID != organizer.UserID {
		return nil, s.rejected(OpUpdate, id, repository.ErrNotFound)
	}

	updated := *current
	s.apply(&updated, organizer, in, s.now())

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, s.rejected(OpUpdate, id, err)
	}

	s.recorder.RecordEventMutation(OpUpdate, "ok")
	s.logger.Info("event updated",
		slog.String("event_id", id),
		slog.String("organizer_id", organizer.UserID),
	)
	return &updated, nil
}

// Delete は主催者自身のイベントを削除する。
func (s *Service) Delete(ctx context.Context, organizer *model.Session, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return s.rejected(OpDelete, id, repository.ErrNotFound)
	}
	if err := s.repo.Delete(ctx, id, organizer.UserID); err != nil {
		return s.rejected(OpDelete, id, err)
	}

	s.recorder.RecordEventMutation(OpDelete, "ok")
	s.logger.Info("event deleted",
		slog.String("event_id", id),
		slog.String("organizer_id", organizer.UserID),
	)
	return nil
}

// check は入力検証と画像URLの検証を行う。
func (s *Service) check(ctx context.Context, in Input) error {
	if err := in.Validate(); err != nil {
		return model.NewInvalidEventError(err.Error())
	}
	if in.ImageURL == "" {
		return nil
	}
	if err := s.guard.ValidateURL(in.ImageURL); err != nil {
		return model.NewInvalidImageURLError(err.Error())
	}
	if s.prober != nil {
		if err := s.prober.Probe(ctx, in.ImageURL); err != nil {
			s.logger.Info("image probe failed",
				slog.String("url", in.ImageURL),
				slog.String("error", err.Error()),
			)
			return model.NewInvalidImageURLError("the URL did not return an image")
		}
	}
	return nil
}

func (s *Service) apply(e *model.Event, organizer *model.Session, in Input, now time.Time) {
	e.Title = s.sanitizer.Title(in.Title)
	e.Description = s.sanitizer.Description(in.Description)
	e.Category = in.Category
	e.Date = in.Date
	e.Time = in.Time
	e.Location = s.sanitizer.Title(in.Location)
	e.Price = in.Price
	e.Capacity = in.Capacity
	e.ImageURL = in.ImageURL
	e.Features = normalizeFeatures(s.sanitizer.Title(in.Features))
	e.OrganizerID = organizer.UserID
	e.OrganizerName = organizer.DisplayName()
	e.UpdatedAt = now
}

// rejected はストアのエラーをMutationErrorに変換する。
func (s *Service) rejected(op, id string, err error) error {
	var message string
	switch {
	case errors.Is(err, repository.ErrNotFound):
		message = "Event not found or not owned by you"
	case errors.Is(err, repository.ErrDuplicate):
		message = "Event already exists"
	default:
		message = "Could not save the event, please try again"
		s.logger.Error("event mutation failed",
			slog.String("op", op),
			slog.String("event_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.recorder.RecordEventMutation(op, "rejected")
	return &model.MutationError{Op: op, Message: message, Err: err}
}
