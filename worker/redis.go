package worker

import (
	"fmt"

	"text2phenotype.com/postag/tasks"
)

type redisTransactions interface {
	getTagTask(redisKey string) (*tasks.TagTask, error)
	onTaskStarted(task *Task) error
	onTaskExceededRetries(task *Task, maxRetries int) error
	onTaskFailedWithError(task *Task, err error) error
	onTaskComplete(task *Task, summary tasks.TagSummary) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) getTagTask(redisKey string) (*tasks.TagTask, error) {
	return wrapper.tasksClient.Tags.Get(redisKey)
}

func (wrapper *redisClientWrapper) onTaskStarted(task *Task) error {
	return wrapper.tasksClient.Tags.Update(task.redisKey, func(tagTask *tasks.TagTask) {
		tagTask.Info.Status = tasks.TaskStatusStarted
		tagTask.Info.Attempts += 1
		tagTask.Info.StartedAt = getFormattedNow()
		tagTask.Info.CompletedAt = nil
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(task *Task, maxRetries int) error {
	return wrapper.tasksClient.Tags.Update(task.redisKey, func(tagTask *tasks.TagTask) {
		tagTask.Info.Status = tasks.TaskStatusCompletedFailure
		tagTask.Info.CompletedAt = getFormattedNow()
		tagTask.Info.ErrorMessages = append(
			tagTask.Info.ErrorMessages,
			fmt.Sprintf(
				"Task has exceeded retries. (Attempts: %d, max retries: %d )",
				tagTask.Info.Attempts,
				maxRetries,
			),
		)
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(task *Task, err error) error {
	return wrapper.tasksClient.Tags.Update(task.redisKey, func(tagTask *tasks.TagTask) {
		tagTask.Info.Status = tasks.TaskStatusFailed
		tagTask.Info.CompletedAt = getFormattedNow()
		tagTask.Info.ErrorMessages = append(tagTask.Info.ErrorMessages, err.Error())
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(task *Task, summary tasks.TagSummary) error {
	if err := wrapper.tasksClient.Tags.SaveSummary(task.redisKey, summary); err != nil {
		return err
	}
	return wrapper.tasksClient.Tags.Update(task.redisKey, func(tagTask *tasks.TagTask) {
		if !tagTask.Info.Status.Complete() {
			tagTask.Info.Status = tasks.TaskStatusCompletedSuccess
		}
		tagTask.Info.CompletedAt = getFormattedNow()
		tagTask.Info.ResultsFileKey = getResultsFileKey(task)
	})
}
