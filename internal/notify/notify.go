// Package notify 把报名状态变化转换为邮件消息并投递到 rabbitmq，由 cmd/mail 负责发送。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/participation"
)

const timeLayout = "2006-01-02 15:04"

// Channel 由 *amqp.Channel 实现
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Directory 提供拼装邮件内容需要的查询
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetActivity(ctx context.Context, id int64) (*domain.Activity, error)
}

type Publisher struct {
	ch      Channel
	dir     Directory
	queue   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewPublisher(ch Channel, dir Directory, queue string, timeout time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{
		ch:      ch,
		dir:     dir,
		queue:   queue,
		timeout: timeout,
		logger:  logger,
	}
}

var _ participation.Notifier = (*Publisher)(nil)

// Notify 失败只记录日志
func (p *Publisher) Notify(ctx context.Context, event participation.Event) {
	if err := p.publish(ctx, event); err != nil {
		p.logger.Warn("投递通知邮件失败",
			zap.String("type", event.Type),
			zap.Int64("volunteerShiftID", event.Record.ID),
			zap.Error(err),
		)
	}
}

func (p *Publisher) publish(ctx context.Context, event participation.Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	message, err := p.build(ctx, event)
	if err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化邮件失败: %w", err)
	}

	return p.ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		true,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (p *Publisher) build(ctx context.Context, event participation.Event) (*domain.MailMessage, error) {
	user, err := p.dir.GetUserByID(ctx, event.Record.AccountID)
	if err != nil {
		return nil, fmt.Errorf("获取志愿者信息失败: %w", err)
	}

	activity, err := p.dir.GetActivity(ctx, event.Shift.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("获取活动信息失败: %w", err)
	}

	data := domain.ParticipationMailData{
		FullName:     user.FullName,
		ActivityName: activity.Name,
		ShiftName:    event.Shift.Name,
		StartTime:    event.Shift.StartTime.Local().Format(timeLayout),
		EndTime:      event.Shift.EndTime.Local().Format(timeLayout),
	}
	if event.Type == domain.MailTypeParticipationReviewed {
		data.Completion = event.Record.Completion
		data.ReviewNote = event.Record.ReviewNote
	}

	return &domain.MailMessage{
		Type: event.Type,
		To:   user.Email,
		Data: data,
	}, nil
}
