package tasks

import (
	"encoding/json"

	"text2phenotype.com/postag/redis"
)

const TagTasksDB redis.DB = 2

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

// TagTask asks for the text stored at TextFileKey to be tagged with the
// tagger configuration Config.
type TagTask struct {
	DocID       string          `json:"document_id"`
	TextFileKey string          `json:"text_file_key"`
	Config      string          `json:"config"`
	Overrides   json.RawMessage `json:"overrides,omitempty"`
	Info        TagTaskInfo     `json:"status"`
}

type TagTaskInfo struct {
	ResultsFileKey string     `json:"results_file_key"`
	StartedAt      *string    `json:"started_at"`
	CompletedAt    *string    `json:"completed_at"`
	Attempts       int        `json:"attempts"`
	Status         TaskStatus `json:"status"`
	ErrorMessages  []string   `json:"error_messages"`
}

// TagSummary is stored under "<task key>-results" once a task completes.
type TagSummary struct {
	Sentences int `json:"sentences"`
	Tokens    int `json:"tokens"`
	Failed    int `json:"failed"`
}

type docStore interface {
	GetDoc(redisKey string, doc interface{}) error
	SaveDoc(redisKey string, doc interface{}) error
	UpdateDoc(redisKey string, doc interface{}, update func() error) error
	Close() error
}

type TagTasks struct {
	client docStore
}

func (tasks TagTasks) Get(redisKey string) (*TagTask, error) {
	var task TagTask
	err := tasks.client.GetDoc(redisKey, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks TagTasks) Update(redisKey string, updateFunc func(task *TagTask)) error {
	var task TagTask
	return tasks.client.UpdateDoc(redisKey, &task, func() error {
		updateFunc(&task)
		return nil
	})
}

func (tasks TagTasks) SaveSummary(redisKey string, summary TagSummary) error {
	return tasks.client.SaveDoc(resultsKey(redisKey), summary)
}

func (tasks TagTasks) GetSummary(redisKey string) (*TagSummary, error) {
	var summary TagSummary
	if err := tasks.client.GetDoc(resultsKey(redisKey), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
