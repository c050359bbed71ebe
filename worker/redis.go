package worker

import (
	"text2phenotype.com/notex/tasks"
	"context"
	"fmt"
)

type redisTransactions interface {
	getNoteTask(ctx context.Context, redisKey string) (*tasks.NoteTask, error)
	getJobTask(task *Task) (*tasks.JobTask, error)
	onTaskStarted(task *Task) error
	onTaskCancelled(task *Task, errorMessages ...string) error
	onTaskExceededRetries(task *Task, maxRetries int) error
	onTaskFailedWithError(task *Task, err error) error
	onTaskRejected(task *Task, err error) error
	onTaskComplete(task *Task) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) onTaskStarted(task *Task) error {
	return wrapper.tasksClient.Notes.Update(task.ctx, task.redisKey, func(noteTask *tasks.NoteTask) {
		noteTask.TaskStatuses.Notex.Status = tasks.TaskStatusStarted
		noteTask.TaskStatuses.Notex.Attempts += 1
		noteTask.TaskStatuses.Notex.StartedAt = getFormattedNow()
		noteTask.TaskStatuses.Notex.CompletedAt = nil
	})
}

func (wrapper *redisClientWrapper) onTaskCancelled(task *Task, errorMessages ...string) error {
	return wrapper.tasksClient.Notes.Update(task.ctx, task.redisKey, func(noteTask *tasks.NoteTask) {
		noteTask.TaskStatuses.Notex.Status = tasks.TaskStatusCanceled
		noteTask.TaskStatuses.Notex.StartedAt = getFormattedNow()
		noteTask.TaskStatuses.Notex.CompletedAt = getFormattedNow()
		noteTask.TaskStatuses.Notex.Attempts += 1
		noteTask.TaskStatuses.Notex.ErrorMessages = append(
			noteTask.TaskStatuses.Notex.ErrorMessages,
			errorMessages...,
		)
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(task *Task, maxRetries int) error {
	if err := wrapper.tasksClient.Jobs.MarkNoteFailed(task.ctx, task.noteTask.JobID, task.redisKey); err != nil {
		return err
	}
	return wrapper.tasksClient.Notes.Update(task.ctx, task.redisKey, func(noteTask *tasks.NoteTask) {
		noteTask.TaskStatuses.Notex.Status = tasks.TaskStatusCompletedFailure
		noteTask.TaskStatuses.Notex.StartedAt = getFormattedNow()
		noteTask.TaskStatuses.Notex.CompletedAt = getFormattedNow()
		noteTask.TaskStatuses.Notex.Attempts += 1
		noteTask.TaskStatuses.Notex.ErrorMessages = append(
			noteTask.TaskStatuses.Notex.ErrorMessages,
			fmt.Sprintf(
				"Task has exceeded retries. (Attempts: %d, max retries: %d )",
				noteTask.TaskStatuses.Notex.Attempts,
				maxRetries,
			),
		)
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(task *Task, err error) error {
	return wrapper.tasksClient.Notes.Update(task.ctx, task.redisKey, func(noteTask *tasks.NoteTask) {
		noteTask.TaskStatuses.Notex.Status = tasks.TaskStatusFailed
		noteTask.TaskStatuses.Notex.CompletedAt = getFormattedNow()
		noteTask.TaskStatuses.Notex.ErrorMessages = append(noteTask.TaskStatuses.Notex.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onTaskRejected(task *Task, err error) error {
	if markErr := wrapper.tasksClient.Jobs.MarkNoteFailed(task.ctx, task.noteTask.JobID, task.redisKey); markErr != nil {
		return markErr
	}
	return wrapper.tasksClient.Notes.Update(task.ctx, task.redisKey, func(noteTask *tasks.NoteTask) {
		noteTask.TaskStatuses.Notex.Status = tasks.TaskStatusCompletedFailure
		noteTask.TaskStatuses.Notex.CompletedAt = getFormattedNow()
		noteTask.TaskStatuses.Notex.ErrorMessages = append(noteTask.TaskStatuses.Notex.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(task *Task) error {
	return wrapper.tasksClient.Notes.Update(task.ctx, task.redisKey, func(noteTask *tasks.NoteTask) {
		if !noteTask.TaskStatuses.Notex.Status.Complete() {
			noteTask.TaskStatuses.Notex.Status = tasks.TaskStatusCompletedSuccess
		}
		noteTask.TaskStatuses.Notex.CompletedAt = getFormattedNow()
		noteTask.TaskStatuses.Notex.ResultsFileKey = getResultsFileKey(task)
	})
}

func (wrapper *redisClientWrapper) getNoteTask(ctx context.Context, redisKey string) (*tasks.NoteTask, error) {
	return wrapper.tasksClient.Notes.Get(ctx, redisKey)
}

func (wrapper *redisClientWrapper) getJobTask(task *Task) (*tasks.JobTask, error) {
	return wrapper.tasksClient.Jobs.GetCached(task.ctx, task.noteTask.JobID)
}
