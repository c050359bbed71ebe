package rmq

import (
	"text2phenotype.com/notex/logger"
	"fmt"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"net/url"
)

type Config struct {
	Host                    string `envconfig:"NOTEX_RMQ_HOST" required:"true"`
	Port                    string `envconfig:"NOTEX_RMQ_PORT" default:"5672"`
	Username                string `envconfig:"NOTEX_RMQ_USERNAME" required:"true"`
	Password                string `envconfig:"NOTEX_RMQ_PASSWORD" required:"true"`
	Exchange                string `envconfig:"NOTEX_RMQ_EXCHANGE" default:"notex-default-exchange"`
	MaxParallelRequestCount int    `envconfig:"NOTEX_RMQ_MAX_PARALLEL_REQUESTS" default:"5"`
	TaskQueue               string `envconfig:"NOTEX_RMQ_TASK_QUEUE" default:"notex_tasks"`
	CompletionQueue         string `envconfig:"NOTEX_RMQ_COMPLETION_QUEUE" default:"notex_completed"`
}

// Client consumes extraction tasks on one connection and publishes completion
// notices on another.
type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	rmqLogger      zerolog.Logger
}

func NewClient() (*Client, error) {
	rmqLogger := logger.NewLogger("RMQ client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		rmqLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	amqpURL := URL(config)
	respConn, respChannel, err := setup(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %w", err)
	}
	reqConn, reqChannel, err := setup(amqpURL)
	if err != nil {
		_ = respConn.Close()
		return nil, fmt.Errorf("failed connection: %w", err)
	}
	client := &Client{
		config:      config,
		reqConn:     reqConn,
		respConn:    respConn,
		respChannel: respChannel,
		rmqLogger:   rmqLogger,
	}
	if err := client.consume(reqChannel); err != nil {
		client.Close()
		return nil, err
	}
	client.RespChanErrors = respChannel.NotifyClose(make(chan *amqp.Error, 1))
	rmqLogger.Info().
		Str("task_queue", config.TaskQueue).
		Str("completion_queue", config.CompletionQueue).
		Int("prefetch", config.MaxParallelRequestCount).
		Msg("Connected to RMQ")
	return client, nil
}

func (c *Client) consume(reqChannel *amqp.Channel) error {
	q, err := reqChannel.QueueDeclare(
		c.config.TaskQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("declare %s: %w", c.config.TaskQueue, err)
	}
	if err := reqChannel.QueueBind(q.Name, q.Name, c.config.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", q.Name, err)
	}
	if err := reqChannel.Qos(c.config.MaxParallelRequestCount, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	deliveries, err := reqChannel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume deliveries: %w", err)
	}
	c.Deliveries = deliveries
	c.ReqChanErrors = reqChannel.NotifyClose(make(chan *amqp.Error, 1))
	return nil
}

// NotifyCompletion publishes msg to the completion queue.
func (c *Client) NotifyCompletion(msg amqp.Publishing) error {
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.CompletionQueue,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.reqConn.Close()
	_ = c.respConn.Close()
}

// URL builds the broker address; credentials are escaped.
func URL(config Config) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(config.Username, config.Password),
		Host:   fmt.Sprintf("%s:%s", config.Host, config.Port),
	}
	return u.String()
}

func setup(amqpURL string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
