package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/cartling/go-shop-api/internal/model"
	"github.com/cartling/go-shop-api/internal/repository"
)

const (
	orderQueueName = "orders"
	dlxExchange    = "orders.dlx"
	dlqQueueName   = "orders.dlq"
	idempotencyTTL = 24 * time.Hour
)

// Notifier delivers an order-placed notification to a user. The default
// wiring logs the delivery; a mail or SMS sender satisfies the same interface.
type Notifier interface {
	Send(ctx context.Context, user *model.User, n *model.Notification) error
}

// LogNotifier writes deliveries to the structured log.
type LogNotifier struct {
	Log *slog.Logger
}

func (l *LogNotifier) Send(_ context.Context, user *model.User, n *model.Notification) error {
	l.Log.Info("notification sent", "user_id", user.ID, "email", user.Email, "subject", n.Subject)
	return nil
}

// NotificationWorker consumes order-placed messages and turns each into a
// recorded, delivered notification.
type NotificationWorker struct {
	channel          *amqp.Channel
	orderRepo        repository.OrderRepository
	userRepo         repository.UserRepository
	notificationRepo repository.NotificationRepository
	redisClient      *redis.Client
	notifier         Notifier
	log              *slog.Logger
	done             chan struct{}
}

func NewNotificationWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	notificationRepo repository.NotificationRepository,
	redisClient *redis.Client,
	notifier Notifier,
	log *slog.Logger,
) *NotificationWorker {
	return &NotificationWorker{
		channel:          ch,
		orderRepo:        orderRepo,
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		redisClient:      redisClient,
		notifier:         notifier,
		log:              log,
		done:             make(chan struct{}),
	}
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, orderQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(orderQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": orderQueueName,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("notification worker started")
	return nil
}

func (w *NotificationWorker) Stop() { close(w.done) }

func (w *NotificationWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var orderMsg model.OrderMessage
	if err := json.Unmarshal(msg.Body, &orderMsg); err != nil {
		w.log.Error("unmarshal order message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", orderMsg.OrderID, "user_id", orderMsg.UserID)

	// Redelivery after a broker restart must not double-send.
	idempotencyKey := "notified:" + orderMsg.OrderID.String()
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("order already notified, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.notify(ctx, orderMsg); err != nil {
		log.Error("notify failed", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("order notification delivered")
}

func (w *NotificationWorker) notify(ctx context.Context, orderMsg model.OrderMessage) error {
	order, err := w.orderRepo.GetByID(ctx, orderMsg.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", orderMsg.OrderID)
	}

	user, err := w.userRepo.GetByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user not found: %s", order.UserID)
	}

	n := &model.Notification{
		UserID:  user.ID,
		OrderID: order.ID,
		Subject: "Order Placed Successfully!",
		Body: fmt.Sprintf("Hello %s! Your order %s has been placed successfully. Total amount: $%s.",
			user.Name, order.ID, order.TotalAmount.StringFixed(2)),
	}
	if err := w.notificationRepo.Create(ctx, n); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}

	if err := w.notifier.Send(ctx, user, n); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
