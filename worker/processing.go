package worker

import (
	"text2phenotype.com/notex/pipeline"
	"text2phenotype.com/notex/tasks"
	"text2phenotype.com/notex/types"
	"text2phenotype.com/notex/utils"
	"context"
	"encoding/json"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type Message struct {
	WorkType string `json:"work_type"`
	RedisKey string `json:"redis_key"`
	Sender   string `json:"sender"`
	Version  string `json:"version"`
}

type Task struct {
	ctx        context.Context
	delivery   *amqp.Delivery
	noteTask   *tasks.NoteTask
	message    *Message
	redisKey   string
	taskLogger *zerolog.Logger
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	task, err := worker.createTask(context.Background(), delivery)
	rejectLogger := worker.wLogger.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.wLogger.Err(err).
			Str("message_id", delivery.MessageId).
			Str("tid", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.processTask(task); err != nil {
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.notifyCompletion(task, *task.message); err != nil {
		task.taskLogger.Err(err).Msg("Got error while sending completion message")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.taskLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.taskLogger.Info().Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(ctx context.Context, delivery *amqp.Delivery) (*Task, error) {
	var message Message
	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	noteTask, err := worker.redis.getNoteTask(ctx, message.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query note task for message, got error %w", err)
	}
	taskLogger := worker.wLogger.With().
		Str("tid", message.RedisKey).
		Str("job_id", noteTask.JobID).
		Logger()
	task := Task{
		ctx:        ctx,
		delivery:   delivery,
		noteTask:   noteTask,
		redisKey:   message.RedisKey,
		message:    &message,
		taskLogger: &taskLogger,
	}
	return &task, nil
}

func (worker *Worker) processTask(task *Task) error {
	shouldPerform, err := worker.shouldPerformTask(task)
	if err != nil {
		task.taskLogger.Err(err).Msg("Got error while trying to decide whether to run task")
		return err
	}
	if !shouldPerform {
		return nil
	}
	if err = worker.redis.onTaskStarted(task); err != nil {
		task.taskLogger.Err(err).Msg("Failed to update task info")
		return fmt.Errorf("failed to update TaskInfo: %w", err)
	}
	if err = worker.runPipeline(task); err != nil {
		task.taskLogger.Err(err).Msg("Got error while running pipeline")
		// Bad input fails the same way on every attempt.
		if types.IsClientError(err) {
			return worker.redis.onTaskRejected(task, err)
		}
		return worker.redis.onTaskFailedWithError(task, err)
	}
	task.taskLogger.Info().Msg("Saved results, marking task as complete")
	if err = worker.redis.onTaskComplete(task); err != nil {
		task.taskLogger.Err(err).Msg("Got error while trying to mark task as complete")
		return err
	}
	return nil
}

func (worker *Worker) runPipeline(task *Task) (err error) {
	defer utils.RecoverWithError(&err)
	task.taskLogger.Info().Msgf("Processing message from RMQ, attempt # %d", task.noteTask.TaskStatuses.Notex.Attempts)
	data, err := worker.s3.getNoteText(task)
	if err != nil {
		task.taskLogger.Err(err).Caller().Msg("Could not fetch note text from s3")
		return fmt.Errorf("failed fetch data from s3: %w", err)
	}
	request := pipeline.Request{
		Tid:       task.redisKey,
		Text:      string(data),
		Model:     task.noteTask.Model,
		Operation: pipeline.Operation(task.noteTask.Operation),
		DataClass: task.noteTask.DataClass,
		Enrich:    task.noteTask.EnrichOrDefault(),
	}
	result, err := worker.runner.Run(task.ctx, request)
	if err != nil {
		return err
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	task.taskLogger.Info().Msg("Finished pipeline, saving results to s3")
	if err = worker.s3.saveResultsFile(task, b); err != nil {
		task.taskLogger.Err(err).Msg("Got error while trying to save results")
		return err
	}
	return nil
}

func (worker *Worker) shouldPerformTask(task *Task) (bool, error) {
	taskInfo := task.noteTask.TaskStatuses.Notex
	taskLogger := task.taskLogger

	if taskInfo.Status.Complete() {
		taskLogger.Info().Msg("Task is already done. (might indicate issue acking message with RMQ). Sending completion message.")
		return false, nil
	}
	jobTask, err := worker.redis.getJobTask(task)
	if err != nil {
		taskLogger.Err(err).Msg("Failed to query job task for note task")
		return false, err
	}
	if jobTask.UserCanceled {
		taskLogger.Info().Msg("Job was canceled, no need to perform this task. Sending completion message.")
		return false, worker.redis.onTaskCancelled(task)
	}
	if taskInfo.Attempts >= worker.config.TaskMaxRetries {
		taskLogger.Info().Msg("Notex task has exceeded retries. Sending completion message.")
		return false, worker.redis.onTaskExceededRetries(task, worker.config.TaskMaxRetries)
	}
	return true, nil
}
