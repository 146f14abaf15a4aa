package events

import (
	"context"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"clinreg-service/internal/app/config"
	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

type rabbitEventPublisher struct {
	Channel  *amqp091.Channel
	Exchange string
	Limiter  *rate.Limiter
	Log      *zap.Logger
}

var (
	eventPublisherInstance contracts.EventPublisher
	onceEventPublisher     sync.Once
)

func NewRabbitEventPublisher(
	conn *amqp091.Connection,
	internalConfig *config.InternalConfig,
	logger *zap.Logger,
) (contracts.EventPublisher, error) {
	var initErr error
	onceEventPublisher.Do(func() {
		channel, err := conn.Channel()
		if err != nil {
			initErr = err
			return
		}
		err = channel.ExchangeDeclare(
			internalConfig.RabbitMQ.NotificationExchange,
			"topic",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			initErr = err
			return
		}
		perSecond := internalConfig.RabbitMQ.PublishRatePerSecond
		if perSecond <= 0 {
			perSecond = 20
		}
		eventPublisherInstance = &rabbitEventPublisher{
			Channel:  channel,
			Exchange: internalConfig.RabbitMQ.NotificationExchange,
			Limiter:  rate.NewLimiter(rate.Limit(perSecond), perSecond),
			Log:      logger,
		}
	})
	return eventPublisherInstance, initErr
}

// Publish emits one clinical event on the notification exchange. Publishing
// is throttled so a bulk import cannot flood downstream consumers.
func (p *rabbitEventPublisher) Publish(ctx context.Context, routingKey string, event contracts.ClinicalEvent) error {
	if err := p.Limiter.Wait(ctx); err != nil {
		return exceptions.ErrRabbitMQPublish(err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return exceptions.ErrCannotMarshalJSON(err)
	}

	err = p.Channel.PublishWithContext(ctx, p.Exchange, routingKey, false, false, amqp091.Publishing{
		ContentType: constvars.MIMEApplicationJSON,
		Body:        body,
	})
	if err != nil {
		return exceptions.ErrRabbitMQPublish(err)
	}

	p.Log.Debug("Published clinical event",
		zap.String(constvars.LoggingEventKey, routingKey),
		zap.String(constvars.LoggingRegistryCodeKey, event.RegistryCode),
	)
	return nil
}
