package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/semuinside/exam-backend/internal/model"
	"github.com/semuinside/exam-backend/internal/repository"
)

// MonitorService builds the admin live-monitor view of an exam.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
	eventRepo   *repository.EventRepository
	exams       *ExamService
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository, eventRepo *repository.EventRepository, exams *ExamService) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo, eventRepo: eventRepo, exams: exams}
}

// SessionEvents returns the most recent persisted lifecycle events of a session.
func (s *MonitorService) SessionEvents(ctx context.Context, sessionID uuid.UUID, limit int) ([]model.SessionEventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	events, err := s.eventRepo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []model.SessionEventRecord{}
	}
	return events, nil
}

// MonitorStats aggregates attempt counts for one exam.
type MonitorStats struct {
	TotalJoined     int   `json:"total_joined"`
	TotalInProgress int   `json:"total_in_progress"`
	TotalSubmitted  int   `json:"total_submitted"`
	TotalGraded     int   `json:"total_graded"`
	TotalPassed     int   `json:"total_passed"`
	TotalLeaves     int64 `json:"total_leave_attempts"`
}

// MonitorExam is the exam header shown above the progress table.
type MonitorExam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalQuestions  int       `json:"total_questions"`
	PassingScore    int       `json:"passing_score"`
}

// MonitorSnapshot is the full state sent when an admin attaches.
type MonitorSnapshot struct {
	Exam     MonitorExam                  `json:"exam"`
	Stats    MonitorStats                 `json:"stats"`
	Sessions []repository.SessionProgress `json:"sessions"`
}

// Snapshot returns every attempt at the exam together with aggregate counts.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	exam, err := s.exams.GetDefinition(ctx, examID)
	if err != nil {
		return nil, err
	}

	progress, err := s.monitorRepo.ListProgress(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	return &MonitorSnapshot{
		Exam: MonitorExam{
			ID:              exam.ID,
			Title:           exam.Title,
			DurationMinutes: exam.DurationMinutes,
			TotalQuestions:  len(exam.Questions),
			PassingScore:    exam.PassingScore,
		},
		Stats:    summarize(progress, exam.PassingScore),
		Sessions: progress,
	}, nil
}

// Progress returns only the per-session rows, used for periodic refreshes.
func (s *MonitorService) Progress(ctx context.Context, examID uuid.UUID) ([]repository.SessionProgress, MonitorStats, error) {
	exam, err := s.exams.GetDefinition(ctx, examID)
	if err != nil {
		return nil, MonitorStats{}, err
	}
	progress, err := s.monitorRepo.ListProgress(ctx, examID)
	if err != nil {
		return nil, MonitorStats{}, fmt.Errorf("list progress: %w", err)
	}
	return progress, summarize(progress, exam.PassingScore), nil
}

func summarize(progress []repository.SessionProgress, passingScore int) MonitorStats {
	stats := MonitorStats{TotalJoined: len(progress)}
	for _, p := range progress {
		stats.TotalLeaves += p.LeaveAttempts
		switch p.Status {
		case model.SessionStatusInProgress:
			stats.TotalInProgress++
		case model.SessionStatusSubmitted:
			stats.TotalSubmitted++
		case model.SessionStatusGraded:
			stats.TotalGraded++
			if p.Score != nil && p.TotalPoints != nil && *p.TotalPoints > 0 &&
				model.Percent(*p.Score, *p.TotalPoints) >= float64(passingScore) {
				stats.TotalPassed++
			}
		}
	}
	return stats
}
