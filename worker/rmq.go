package worker

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/postag/rmq"
	"text2phenotype.com/postag/tasks"
)

// ResultMessage tells the results queue how a tagging task ended. The
// request message fields are echoed back.
type ResultMessage struct {
	Message
	Status         tasks.TaskStatus  `json:"status"`
	ResultsFileKey string            `json:"results_file_key,omitempty"`
	Summary        *tasks.TagSummary `json:"summary,omitempty"`
}

func (task *Task) resultMessage() ResultMessage {
	message := *task.message
	message.Sender = sender
	return ResultMessage{
		Message:        message,
		Status:         task.status,
		ResultsFileKey: task.resultsFileKey,
		Summary:        task.summary,
	}
}

type rmqTransactions interface {
	publishResult(result ResultMessage) error
	acknowledgeDelivery(delivery *amqp.Delivery) error
	requeueOnce(delivery *amqp.Delivery, postagLogger *zerolog.Logger)
	getDeliveriesCh() <-chan amqp.Delivery
	getReqChanErrorsCh() <-chan *amqp.Error
	getRespChanErrorsCh() <-chan *amqp.Error
	close()
}

type rmqClientWrapper struct {
	rmqClient *rmq.Client
}

func (wrapper *rmqClientWrapper) close() {
	wrapper.rmqClient.Close()
}

func (wrapper *rmqClientWrapper) getDeliveriesCh() <-chan amqp.Delivery {
	return wrapper.rmqClient.Deliveries
}

func (wrapper *rmqClientWrapper) getReqChanErrorsCh() <-chan *amqp.Error {
	return wrapper.rmqClient.ReqChanErrors
}

func (wrapper *rmqClientWrapper) getRespChanErrorsCh() <-chan *amqp.Error {
	return wrapper.rmqClient.RespChanErrors
}

func (wrapper *rmqClientWrapper) publishResult(result ResultMessage) error {
	body, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return wrapper.rmqClient.PublishResult(amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		CorrelationId: result.RedisKey,
		Timestamp:     time.Now().UTC(),
		Body:          body,
	})
}

func (wrapper *rmqClientWrapper) acknowledgeDelivery(delivery *amqp.Delivery) error {
	return delivery.Ack(false)
}

// requeueOnce gives a failed delivery one more try and drops it when it
// comes back again.
func (wrapper *rmqClientWrapper) requeueOnce(delivery *amqp.Delivery, postagLogger *zerolog.Logger) {
	requeue := !delivery.Redelivered
	if err := delivery.Reject(requeue); err != nil {
		postagLogger.Err(err).Bool("requeue", requeue).Msg("Failed to reject delivery")
		return
	}
	postagLogger.Info().Bool("requeue", requeue).Msg("Rejected delivery")
}
