package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/menuboard/api/internal/platform/config"
	"github.com/menuboard/api/internal/services"
)

// PubSubHandoffPublisher hands composed orders to a Pub/Sub topic, where a
// messaging bridge delivers them to the store's phone.
type PubSubHandoffPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubHandoffPublisher constructs a publisher for topic.
func NewPubSubHandoffPublisher(topic *pubsub.Topic) (*PubSubHandoffPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub handoff publisher: topic is required")
	}
	return &PubSubHandoffPublisher{topic: topic, marshal: json.Marshal}, nil
}

// Dispatch publishes the order and waits for the server to acknowledge it.
func (p *PubSubHandoffPublisher) Dispatch(ctx context.Context, msg services.HandoffMessage) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub handoff publisher: not initialised")
	}
	data, err := p.marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal handoff: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "sessionId", msg.SessionID)
	setAttr(attrs, "destination", msg.Destination)
	attrs["itemCount"] = strconv.Itoa(msg.ItemCount)

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish handoff: %w", err)
	}
	return nil
}

// OpenTopic connects to Pub/Sub (or its emulator) and returns the configured topic.
// The caller owns the returned client.
func OpenTopic(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Client, *pubsub.Topic, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, nil, errors.New("pubsub: project id is required")
	}
	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub: create client: %w", err)
	}
	topic := client.Topic(strings.TrimSpace(cfg.Topic))
	return client, topic, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.HandoffDispatcher = (*PubSubHandoffPublisher)(nil)
