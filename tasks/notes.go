package tasks

import (
	"text2phenotype.com/notex/redis"
	"context"
)

const NotesDB redis.DB = 2

type TaskStatus string

const (
	TaskStatusSubmitted        TaskStatus = "submitted"
	TaskStatusStarted          TaskStatus = "started"
	TaskStatusFailed           TaskStatus = "failed"
	TaskStatusCompletedSuccess TaskStatus = "completed - success"
	TaskStatusCompletedFailure TaskStatus = "completed - failure"
	TaskStatusCanceled         TaskStatus = "canceled"
)

func (s TaskStatus) Complete() bool {
	return s == TaskStatusCompletedSuccess || s == TaskStatusCompletedFailure || s == TaskStatusCanceled
}

// Operation names what the worker runs for a note.
type Operation string

const (
	OperationEntities    Operation = "entities"
	OperationUSCDI       Operation = "uscdi"
	OperationUSCDISingle Operation = "uscdi_single"
	OperationUSCDIClass  Operation = "uscdi_class"
)

// NoteTask is the Redis document describing one note to extract.
type NoteTask struct {
	JobID        string           `json:"job_id"`
	TextFileKey  string           `json:"text_file_key"`
	Operation    Operation        `json:"operation"`
	Model        string           `json:"model"`
	DataClass    string           `json:"data_class,omitempty"`
	Enrich       *bool            `json:"enrich,omitempty"`
	TaskStatuses NoteTaskStatuses `json:"task_statuses"`
}

type NoteTaskStatuses struct {
	Notex TaskInfo `json:"notex"`
}

type TaskInfo struct {
	ResultsFileKey string     `json:"results_file_key"`
	StartedAt      *string    `json:"started_at"`
	CompletedAt    *string    `json:"completed_at"`
	Attempts       int        `json:"attempts"`
	Status         TaskStatus `json:"status"`
	ErrorMessages  []string   `json:"error_messages"`
}

// EnrichOrDefault reports whether concept enrichment was requested; it is on
// unless the task turns it off.
func (t *NoteTask) EnrichOrDefault() bool {
	return t.Enrich == nil || *t.Enrich
}

type NoteTasks struct {
	client *redis.Client
}

func (tasks NoteTasks) Get(ctx context.Context, redisKey string) (*NoteTask, error) {
	var task NoteTask
	if err := tasks.client.GetDocument(ctx, redisKey, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks NoteTasks) Update(ctx context.Context, redisKey string, updateFunc func(task *NoteTask)) error {
	var task NoteTask
	return tasks.client.UpdateDocument(ctx, redisKey, &task, func() { updateFunc(&task) })
}
