package queues

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// When reconnecting to the server after connection failure
	reconnectDelay = 5 * time.Second

	// When setting up the channel after a channel exception
	reInitDelay = 2 * time.Second

	// When resending messages the server didn't confirm
	resendDelay = 5 * time.Second

	// How many times a message is resent before Push gives up
	maxResends = 3
)

var (
	errNotConnected  = errors.New("not connected to a server")
	errAlreadyClosed = errors.New("already closed: not connected to the server")
	errShutdown      = errors.New("client is shutting down")
	errNotConfirmed  = errors.New("message was not confirmed by the server")
)

// Client keeps one confirming channel to the broker open, reconnecting in the background.
type Client struct {
	m               *sync.Mutex
	log             *zap.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan bool
	closeOnce       sync.Once
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	isReady         bool
}

// New creates a client and starts connecting to addr in the background.
func New(addr string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	client := Client{
		m:    &sync.Mutex{},
		log:  log,
		done: make(chan bool),
	}
	go client.handleReconnect(addr)
	return &client
}

// handleReconnect waits for a connection error on notifyConnClose, then keeps trying to
// reconnect.
func (client *Client) handleReconnect(addr string) {
	for {
		client.m.Lock()
		client.isReady = false
		client.m.Unlock()

		client.log.Info("connecting to amqp broker")

		conn, err := client.connect(addr)
		if err != nil {
			client.log.Warn("failed to connect to amqp broker, retrying", zap.Error(err))

			select {
			case <-client.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := client.handleReInit(conn); done {
			return
		}
	}
}

func (client *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, err
	}

	client.changeConnection(conn)
	client.log.Info("connected to amqp broker")
	return conn, nil
}

// handleReInit waits for a channel error and then re-initializes the channel.
func (client *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		client.m.Lock()
		client.isReady = false
		client.m.Unlock()

		err := client.init(conn)
		if err != nil {
			client.log.Warn("failed to initialize amqp channel, retrying", zap.Error(err))

			select {
			case <-client.done:
				return true
			case <-client.notifyConnClose:
				client.log.Warn("amqp connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-client.done:
			return true
		case <-client.notifyConnClose:
			client.log.Warn("amqp connection closed, reconnecting")
			return false
		case <-client.notifyChanClose:
			client.log.Warn("amqp channel closed, re-running init")
		}
	}
}

func (client *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err = ch.Confirm(false); err != nil {
		return err
	}

	if err = declareTrafficEvents(ch); err != nil {
		return err
	}

	client.changeChannel(ch)
	client.m.Lock()
	client.isReady = true
	client.m.Unlock()

	client.log.Info("amqp channel ready")
	return nil
}

func (client *Client) changeConnection(connection *amqp.Connection) {
	client.connection = connection
	client.notifyConnClose = make(chan *amqp.Error, 1)
	client.connection.NotifyClose(client.notifyConnClose)
}

func (client *Client) changeChannel(channel *amqp.Channel) {
	client.channel = channel
	client.notifyChanClose = make(chan *amqp.Error, 1)
	client.notifyConfirm = make(chan amqp.Confirmation, 1)
	client.channel.NotifyClose(client.notifyChanClose)
	client.channel.NotifyPublish(client.notifyConfirm)
}

func (client *Client) Ready() bool {
	client.m.Lock()
	defer client.m.Unlock()
	return client.isReady
}

// Push publishes data and waits for the broker's confirmation. Failed publishes are retried
// a few times, the retries stop when ctx is done.
func (client *Client) Push(ctx context.Context, data amqp.Publishing, exchange, routingKey string) error {
	if !client.Ready() {
		return errNotConnected
	}
	for attempt := 0; ; attempt++ {
		err := client.UnsafePush(ctx, data, exchange, routingKey)
		if err == nil {
			select {
			case confirm := <-client.notifyConfirm:
				if confirm.Ack {
					client.log.Debug("push confirmed", zap.Uint64("delivery_tag", confirm.DeliveryTag))
					return nil
				}
				err = errNotConfirmed
			case <-ctx.Done():
				return ctx.Err()
			case <-client.done:
				return errShutdown
			}
		}
		if attempt+1 >= maxResends {
			return err
		}
		client.log.Warn("push failed, retrying", zap.String("routing_key", routingKey), zap.Error(err))
		select {
		case <-client.done:
			return errShutdown
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resendDelay):
		}
	}
}

// UnsafePush publishes without waiting for a confirmation.
func (client *Client) UnsafePush(ctx context.Context, data amqp.Publishing, exchange, routingKey string) error {
	client.m.Lock()
	if !client.isReady {
		client.m.Unlock()
		return errNotConnected
	}
	ch := client.channel
	client.m.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return ch.PublishWithContext(
		ctx,
		exchange,   // Exchange
		routingKey, // Routing key
		false,      // Mandatory
		false,      // Immediate
		data,
	)
}

// Close stops reconnecting and shuts the channel and connection down.
func (client *Client) Close() error {
	client.closeOnce.Do(func() {
		close(client.done)
	})

	client.m.Lock()
	defer client.m.Unlock()

	if !client.isReady {
		return errAlreadyClosed
	}
	client.isReady = false
	if err := client.channel.Close(); err != nil {
		return err
	}
	return client.connection.Close()
}

func declareTrafficEvents(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		TrafficExchange, // name
		"topic",         // type
		true,            // durable
		false,           // auto-deleted
		false,           // internal
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		trafficAlertQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		return err
	}

	return ch.QueueBind(
		q.Name,            // queue name
		"traffic.alert.#", // routing key
		TrafficExchange,   // exchange
		false,
		nil,
	)
}
