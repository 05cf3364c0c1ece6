package worker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/postag/logger"
	"text2phenotype.com/postag/pipeline"
	"text2phenotype.com/postag/rmq"
	"text2phenotype.com/postag/s3client"
	"text2phenotype.com/postag/tasks"
)

type Config struct {
	TaskMaxRetries   int `envconfig:"MDL_COMN_RETRY_TASK_COUNT_MAX" default:"3"`
	MaxParallelTasks int `envconfig:"POSTAG_WORKER_MAX_PARALLEL_TASKS" default:"5"`
}

// clients opens the connections of a Worker.
type clients struct {
	redis func() (redisTransactions, error)
	s3    func() (s3Transactions, error)
	rmq   func() (rmqTransactions, error)
}

func serviceClients() clients {
	return clients{
		redis: func() (redisTransactions, error) {
			tasksClient, err := tasks.NewClient()
			if err != nil {
				return nil, err
			}
			return &redisClientWrapper{&tasksClient}, nil
		},
		s3: func() (s3Transactions, error) {
			s3Client, err := s3client.New()
			if err != nil {
				return nil, err
			}
			return &s3ClientWrapper{s3Client}, nil
		},
		rmq: func() (rmqTransactions, error) {
			rmqClient, err := rmq.NewClient()
			if err != nil {
				return nil, err
			}
			return &rmqClientWrapper{rmqClient}, nil
		},
	}
}

// Worker consumes tagging task messages, tags the referenced text and
// reports the outcome to the task document and the results queue.
type Worker struct {
	config       Config
	clients      clients
	redis        redisTransactions
	s3           s3Transactions
	postagLogger *zerolog.Logger
	ppln         pipeline.Pipeline

	// mu guards rmq, which is replaced on reconnect while tasks run.
	mu  sync.RWMutex
	rmq rmqTransactions

	slots    chan struct{}
	inFlight sync.WaitGroup
}

func New(ppln pipeline.Pipeline) (*Worker, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("could not read worker config: %w", err)
	}
	return newWorker(config, serviceClients(), ppln)
}

func newWorker(config Config, clients clients, ppln pipeline.Pipeline) (*Worker, error) {
	postagLogger := logger.NewLogger("Worker")
	if config.MaxParallelTasks < 1 {
		config.MaxParallelTasks = 1
	}
	worker := &Worker{
		config:       config,
		clients:      clients,
		postagLogger: &postagLogger,
		ppln:         ppln,
		slots:        make(chan struct{}, config.MaxParallelTasks),
	}

	var err error
	if worker.rmq, err = clients.rmq(); err != nil {
		postagLogger.Err(err).Msg("Could not create RMQ client")
		return nil, err
	}
	if worker.s3, err = clients.s3(); err != nil {
		postagLogger.Err(err).Msg("Could not create S3 client")
		worker.rmq.close()
		return nil, err
	}
	if worker.redis, err = clients.redis(); err != nil {
		postagLogger.Err(err).Msg("Could not create Redis client")
		worker.rmq.close()
		worker.s3.close()
		return nil, err
	}
	postagLogger.Info().Int("max_parallel_tasks", config.MaxParallelTasks).Msg("Worker is ready")
	return worker, nil
}

// StartWorker processes deliveries until the RMQ connection is lost and
// cannot be restored. It returns once every started task has finished.
func (worker *Worker) StartWorker() error {
	defer worker.Close()
	for {
		queue := worker.queue()
		var lost error
		select {
		case delivery, ok := <-queue.getDeliveriesCh():
			if ok {
				worker.dispatch(queue, delivery)
				continue
			}
			lost = errors.New("rmq deliveries channel has been closed")
		case rmqErr, ok := <-queue.getRespChanErrorsCh():
			lost = connectionLost("response", rmqErr, ok)
		case rmqErr, ok := <-queue.getReqChanErrorsCh():
			lost = connectionLost("request", rmqErr, ok)
		}
		worker.postagLogger.Err(lost).Msg("Lost RMQ connection, reconnecting")
		if err := worker.reconnectRMQ(); err != nil {
			return fmt.Errorf("%v and reconnect failed with: %w", lost, err)
		}
	}
}

func connectionLost(name string, rmqErr *amqp.Error, ok bool) error {
	if !ok || rmqErr == nil {
		return fmt.Errorf("rmq %s connection has been closed", name)
	}
	return fmt.Errorf("rmq %s connection received error: %w", name, rmqErr)
}

// dispatch blocks while MaxParallelTasks tasks are running.
func (worker *Worker) dispatch(queue rmqTransactions, delivery amqp.Delivery) {
	worker.slots <- struct{}{}
	worker.inFlight.Add(1)
	go func() {
		defer func() {
			<-worker.slots
			worker.inFlight.Done()
		}()
		worker.processMessage(queue, &delivery)
	}()
}

func (worker *Worker) queue() rmqTransactions {
	worker.mu.RLock()
	defer worker.mu.RUnlock()
	return worker.rmq
}

func (worker *Worker) reconnectRMQ() error {
	rmqClient, err := worker.clients.rmq()
	if err != nil {
		return err
	}
	worker.mu.Lock()
	old := worker.rmq
	worker.rmq = rmqClient
	worker.mu.Unlock()
	old.close()
	worker.postagLogger.Info().Msg("Reconnected RMQ client")
	return nil
}

// Close waits for running tasks, then closes every client.
func (worker *Worker) Close() {
	worker.inFlight.Wait()
	worker.redis.close()
	worker.s3.close()
	worker.queue().close()
}
