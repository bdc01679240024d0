package routing

import (
	"context"
	"errors"

	"frontdesk/agent/contract"
	"frontdesk/pkg/qstash"
)

// QStashPublisher delivers callback notices to the back-office webhook
// through QStash, so a promise made on the phone survives a process crash.
type QStashPublisher struct {
	client      *qstash.Client
	destination string
}

var _ contract.CallbackPublisher = (*QStashPublisher)(nil)

func NewQStashPublisher(client *qstash.Client, destination string) (*QStashPublisher, error) {
	if client == nil {
		return nil, errors.New("nil qstash client")
	}
	if destination == "" {
		return nil, errors.New("callback destination is required")
	}
	return &QStashPublisher{client: client, destination: destination}, nil
}

func (p *QStashPublisher) PublishCallback(ctx context.Context, notice contract.CallbackNotice) error {
	return p.client.PublishJSON(ctx, p.destination, notice)
}
