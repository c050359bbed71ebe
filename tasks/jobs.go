package tasks

import (
	"text2phenotype.com/notex/redis"
	"context"
	"fmt"
)

const JobsDB redis.DB = 1

type JobTask struct {
	UserCanceled bool     `json:"user_canceled"`
	FailedNotes  []string `json:"failed_notes"`
}

type JobTasks struct {
	client *redis.Client
}

func (tasks JobTasks) GetCached(ctx context.Context, jobID string) (*JobTask, error) {
	var task JobTask
	if err := tasks.client.GetDocument(ctx, cachedPropertiesKey(jobID), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// MarkNoteFailed records a note that will not be retried.
func (tasks JobTasks) MarkNoteFailed(ctx context.Context, jobID, noteKey string) error {
	var task JobTask
	return tasks.client.UpdateDocument(ctx, cachedPropertiesKey(jobID), &task, func() {
		task.FailedNotes = append(task.FailedNotes, noteKey)
	})
}

func cachedPropertiesKey(redisKey string) string {
	return fmt.Sprintf("%s-cached-properties", redisKey)
}
