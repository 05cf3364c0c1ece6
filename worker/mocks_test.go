package worker

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/postag/pipeline"
	"text2phenotype.com/postag/tasks"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type pipelineMock struct {
	ppln     pipeline.Pipeline
	config   pipelineMockConfig
	calls    pipelineCall
	requests []pipeline.Request
}

type pipelineMockConfig struct {
	fail   bool
	result string
}

type pipelineCall struct {
	pipeline bool
}

type redisMock struct {
	config  redisMockConfig
	calls   redisMockCalls
	summary tasks.TagSummary
	closed  int
}

type redisMockConfig struct {
	getTagTask            withValue
	onTaskStarted         failingMethod
	onTaskExceededRetries failingMethod
	onTaskFailedWithError failingMethod
	onTaskComplete        failingMethod
}

type redisMockCalls struct {
	getTagTask            bool
	onTaskStarted         bool
	onTaskExceededRetries bool
	onTaskFailedWithError bool
	onTaskComplete        bool
}

type rmqMock struct {
	config     rmqMockConfig
	calls      rmqMockCalls
	published  []ResultMessage
	deliveries chan amqp.Delivery
	closed     int
}

type rmqMockConfig struct {
	publishResult       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	publishResult       bool
	acknowledgeDelivery bool
	requeueOnce         bool
}

type s3Mock struct {
	config s3MockConfig
	calls  s3MockCalls
	closed int
}

type s3MockConfig struct {
	getText         withValue
	saveResultsFile failingMethod
}

type s3MockCalls struct {
	getText         bool
	saveResultsFile bool
}

func (mock *s3Mock) close() { mock.closed++ }

func (mock *rmqMock) close() { mock.closed++ }

func (mock *redisMock) close() { mock.closed++ }

const defaultPipelineResult = `{"tid":"t","config":"wsj","unseen_penalty":-100,"sentences":[` +
	`{"line":1,"tokens":["the","cat"],"tags":["DET","NOUN"]},` +
	`{"line":2,"tokens":["cat","the","dog"],"tags":[],"error":"decode error"}]}`

func getPipelineMock(config pipelineMockConfig) *pipelineMock {
	mock := pipelineMock{config: config}
	if mock.config.result == "" {
		mock.config.result = defaultPipelineResult
	}
	if config.fail {
		mock.ppln = func(request pipeline.Request) <-chan string {
			mock.calls.pipeline = true
			mock.requests = append(mock.requests, request)
			ch := make(chan string)
			close(ch)
			return ch
		}
	} else {
		mock.ppln = func(request pipeline.Request) <-chan string {
			mock.calls.pipeline = true
			mock.requests = append(mock.requests, request)
			ch := make(chan string, 1)
			ch <- mock.config.result
			close(ch)
			return ch
		}
	}
	return &mock
}

func (mock *redisMock) getTagTask(redisKey string) (*tasks.TagTask, error) {
	mock.calls.getTagTask = true
	if mock.config.getTagTask.fail {
		return nil, errors.New("failed to get tagging task")
	}
	switch mock.config.getTagTask.returnedValue.(type) {
	case tasks.TagTask:
		task := mock.config.getTagTask.returnedValue.(tasks.TagTask)
		return &task, nil
	default:
		return &tasks.TagTask{}, nil
	}
}

func (mock *redisMock) onTaskStarted(task *Task) error {
	mock.calls.onTaskStarted = true
	if mock.config.onTaskStarted.fail {
		return errors.New("failed to update tagging task on start")
	}
	return nil
}

func (mock *redisMock) onTaskExceededRetries(task *Task, maxRetries int) error {
	mock.calls.onTaskExceededRetries = true
	if mock.config.onTaskExceededRetries.fail {
		return errors.New("failed to update tagging task on exceeded retries")
	}
	return nil
}

func (mock *redisMock) onTaskFailedWithError(task *Task, err error) error {
	mock.calls.onTaskFailedWithError = true
	if mock.config.onTaskFailedWithError.fail {
		return errors.New("failed to update tagging task on fail with error")
	}
	return nil
}

func (mock *redisMock) onTaskComplete(task *Task, summary tasks.TagSummary) error {
	mock.calls.onTaskComplete = true
	mock.summary = summary
	if mock.config.onTaskComplete.fail {
		return errors.New("failed to update tagging task on complete")
	}
	return nil
}

func (mock *rmqMock) requeueOnce(delivery *amqp.Delivery, postagLogger *zerolog.Logger) {
	mock.calls.requeueOnce = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return mock.deliveries
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) publishResult(result ResultMessage) error {
	mock.calls.publishResult = true
	mock.published = append(mock.published, result)
	if mock.config.publishResult.fail {
		return errors.New("failed to publish result")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *s3Mock) getText(task *Task) ([]byte, error) {
	mock.calls.getText = true
	if mock.config.getText.fail {
		return nil, errors.New("mock: failed to load from s3")
	}
	switch mock.config.getText.returnedValue.(type) {
	case []byte:
		return mock.config.getText.returnedValue.([]byte), nil
	default:
		return []byte("the cat\ncat the dog"), nil
	}
}

func (mock *s3Mock) saveResultsFile(task *Task, result string) error {
	mock.calls.saveResultsFile = true
	if mock.config.saveResultsFile.fail {
		return errors.New("failed to upload results")
	}
	return nil
}
