package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/postag/pipeline"
	"text2phenotype.com/postag/tasks"
	"text2phenotype.com/postag/types"
	"text2phenotype.com/postag/utils"
)

const sender = "postag"

type Message struct {
	WorkType string `json:"work_type"`
	RedisKey string `json:"redis_key"`
	Sender   string `json:"sender"`
	Version  string `json:"version"`
}

type Task struct {
	delivery     *amqp.Delivery
	tagTask      *tasks.TagTask
	message      *Message
	redisKey     string
	postagLogger *zerolog.Logger

	// outcome reported to the results queue
	status         tasks.TaskStatus
	resultsFileKey string
	summary        *tasks.TagSummary
}

// processMessage answers delivery on queue, the client it was received from.
func (worker *Worker) processMessage(queue rmqTransactions, delivery *amqp.Delivery) {
	task, err := worker.createTask(delivery)
	rejectLogger := worker.postagLogger.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.postagLogger.Err(err).
			Str("message_id", delivery.MessageId).
			Str("tid", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		queue.requeueOnce(delivery, &rejectLogger)
		return
	}
	if err = worker.processTask(task); err != nil {
		queue.requeueOnce(delivery, &rejectLogger)
		return
	}
	if err = queue.publishResult(task.resultMessage()); err != nil {
		task.postagLogger.Err(err).Msg("Got error while publishing result message")
		queue.requeueOnce(delivery, &rejectLogger)
		return
	}
	if err = queue.acknowledgeDelivery(delivery); err != nil {
		task.postagLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.postagLogger.Info().Str("status", string(task.status)).Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(delivery *amqp.Delivery) (*Task, error) {
	var message Message
	err := json.Unmarshal(delivery.Body, &message)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	tagTask, err := worker.redis.getTagTask(message.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query tagging task for message, got error %w", err)
	}
	taskLogger := worker.postagLogger.With().
		Str("tid", message.RedisKey).
		Str("config", tagTask.Config).
		Logger()
	task := Task{
		delivery:     delivery,
		tagTask:      tagTask,
		redisKey:     message.RedisKey,
		message:      &message,
		postagLogger: &taskLogger,
	}
	return &task, nil
}

func (worker *Worker) processTask(task *Task) error {
	info := task.tagTask.Info
	if info.Status.Complete() {
		task.postagLogger.Info().Msg("Task is already done. (might indicate issue acking message with RMQ). Sending result message.")
		task.status = info.Status
		task.resultsFileKey = info.ResultsFileKey
		return nil
	}
	if info.Attempts >= worker.config.TaskMaxRetries {
		task.postagLogger.Info().Msg("Tagging task has exceeded retries. Sending result message.")
		if err := worker.redis.onTaskExceededRetries(task, worker.config.TaskMaxRetries); err != nil {
			return err
		}
		task.status = tasks.TaskStatusCompletedFailure
		return nil
	}
	if err := worker.redis.onTaskStarted(task); err != nil {
		task.postagLogger.Err(err).Msg("Failed to update task info")
		return fmt.Errorf("failed to update TagTaskInfo: %w", err)
	}
	summary, err := worker.runPipeline(task)
	if err != nil {
		task.postagLogger.Err(err).Msg("Got error while running pipeline")
		if err = worker.redis.onTaskFailedWithError(task, err); err != nil {
			return err
		}
		task.status = tasks.TaskStatusFailed
		return nil
	}
	task.postagLogger.Info().
		Int("sentences", summary.Sentences).
		Int("failed", summary.Failed).
		Msg("Saved results, marking task as complete")
	if err = worker.redis.onTaskComplete(task, summary); err != nil {
		task.postagLogger.Err(err).Msg("Got error while trying to mark task as complete")
		return err
	}
	task.status = tasks.TaskStatusCompletedSuccess
	task.resultsFileKey = getResultsFileKey(task)
	task.summary = &summary
	return nil
}

func (worker *Worker) runPipeline(task *Task) (summary tasks.TagSummary, err error) {
	defer utils.RecoverWithError(&err)
	task.postagLogger.Info().Msgf("Processing message from RMQ, attempt # %d", task.tagTask.Info.Attempts+1)
	data, err := worker.s3.getText(task)
	if err != nil {
		task.postagLogger.Err(err).Caller().Msg("Could not fetch text from s3")
		return summary, fmt.Errorf("failed fetch text from s3: %w", err)
	}
	request := pipeline.Request{
		Tid:       task.redisKey,
		Text:      string(data),
		Config:    task.tagTask.Config,
		Overrides: task.tagTask.Overrides,
	}
	result, ok := <-worker.ppln(request)
	if !ok {
		task.postagLogger.Error().Msg("Pipeline channel was closed before returning anything")
		return summary, errors.New("pipeline channel was closed before returning anything")
	}
	if summary, err = summarize(result); err != nil {
		return summary, err
	}
	task.postagLogger.Info().Msg("Finished pipeline, saving results to s3")
	if err = worker.s3.saveResultsFile(task, result); err != nil {
		task.postagLogger.Err(err).Msg("Got error while trying to save results")
		return summary, err
	}
	return summary, nil
}

func summarize(result string) (tasks.TagSummary, error) {
	var response types.TaggingResponse
	if err := json.Unmarshal([]byte(result), &response); err != nil {
		return tasks.TagSummary{}, fmt.Errorf("failed to read pipeline response: %w", err)
	}
	summary := tasks.TagSummary{Sentences: len(response.Sentences)}
	for _, sentence := range response.Sentences {
		summary.Tokens += len(sentence.Tokens)
		if sentence.Error != "" {
			summary.Failed++
		}
	}
	return summary, nil
}
