package handler

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

const (
	MailTypeCreateUser       = "create_user"
	MailTypeAllocationResult = "allocation_result"
)

// publishMail 把邮件序列化后发送到邮件队列，由 mail worker 负责真正发送
func (h *Handler) publishMail(mailMessage domain.MailMessage) error {
	body, err := json.Marshal(mailMessage)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := h.mailChannel.PublishWithContext(
		ctx,
		"",
		h.config.RabbitMQ.MailQueue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	); err != nil {
		return err
	}

	h.metrics.ObserveMailQueued(mailMessage.Type)
	return nil
}
