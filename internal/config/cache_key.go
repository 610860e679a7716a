package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamDefinitionKey returns the cache key for an exam with its questions and options.
func (r *CacheKeyStruct) ExamDefinitionKey(examID uuid.UUID) string {
	return fmt.Sprintf("exam:%s:definition", examID)
}

// ExamDeadlinesKey returns the sorted set of in-progress sessions scored by deadline.
func (r *CacheKeyStruct) ExamDeadlinesKey() string {
	return "exam:deadlines"
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID uuid.UUID) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
