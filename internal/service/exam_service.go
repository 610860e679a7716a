package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/semuinside/exam-backend/internal/config"
	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/repository"
)

// Domain Errors
var (
	ErrExamNotFound = errors.New("exam not found or not published")
	ErrNoQuestions  = errors.New("exam has no questions")
)

// ExamService loads exam definitions through a Redis read-through cache.
// Cached definitions include correctness and never leave the server.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	ttl      time.Duration
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		ttl:      ttl,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetDefinition returns the exam with questions and options. Unpublished exams
// are returned too, since sessions already taken keep depending on them.
func (s *ExamService) GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	key := config.CacheKey.ExamDefinitionKey(examID)

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var exam model.ExamDefinition
		if jerr := json.Unmarshal(raw, &exam); jerr == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Discarding unreadable cached exam")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Msg("Exam cache unavailable, reading from PostgreSQL")
	}

	exam, err := s.load(ctx, examID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, exam)
	return exam, nil
}

// Invalidate drops the cached definition of an exam.
func (s *ExamService) Invalidate(ctx context.Context, examID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.ExamDefinitionKey(examID)).Err()
}

// PrewarmAllCaches loads every published exam into Redis before traffic arrives.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.examRepo.ListPublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	warmed := 0
	for _, id := range ids {
		exam, err := s.load(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Skipping exam during prewarm")
			continue
		}
		s.store(ctx, exam)
		warmed++
	}

	s.log.Info().Int("count", warmed).Msg("Exam caches prewarmed")
	return nil
}

func (s *ExamService) load(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	exam, err := s.examRepo.GetDefinition(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if len(exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	return exam, nil
}

func (s *ExamService) store(ctx context.Context, exam *model.ExamDefinition) {
	raw, err := json.Marshal(exam)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamDefinitionKey(exam.ID), raw, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to cache exam")
	}
}
