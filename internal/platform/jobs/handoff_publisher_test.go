package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"

	"github.com/menuboard/api/internal/platform/config"
	"github.com/menuboard/api/internal/services"
)

func TestPubSubHandoffPublisherPublishesOrder(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, topic, err := OpenTopic(ctx, config.PubSubConfig{
		ProjectID:    "test-project",
		Topic:        "menu-orders",
		EmulatorHost: srv.Addr,
	})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.CreateTopic(ctx, "menu-orders")
	require.NoError(t, err)

	publisher, err := NewPubSubHandoffPublisher(topic)
	require.NoError(t, err)
	defer topic.Stop()

	msg := services.HandoffMessage{
		SessionID:   "01J00000000000000000000000",
		Text:        "🛒 *NEW ORDER*",
		URL:         "https://wa.me/55904070?text=%F0%9F%9B%92",
		Destination: "55904070",
		Total:       270,
		ItemCount:   2,
	}
	require.NoError(t, publisher.Dispatch(ctx, msg))

	messages := srv.Messages()
	require.Len(t, messages, 1)

	var payload services.HandoffMessage
	require.NoError(t, json.Unmarshal(messages[0].Data, &payload))
	require.Equal(t, msg, payload)
	require.Equal(t, "55904070", messages[0].Attributes["destination"])
	require.Equal(t, "2", messages[0].Attributes["itemCount"])
}

func TestPubSubHandoffPublisherMissingTopicFails(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, topic, err := OpenTopic(ctx, config.PubSubConfig{ProjectID: "p", Topic: "absent", EmulatorHost: srv.Addr})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	publisher, err := NewPubSubHandoffPublisher(topic)
	require.NoError(t, err)
	require.Error(t, publisher.Dispatch(ctx, services.HandoffMessage{SessionID: "s"}))
}

func TestNewPubSubHandoffPublisherRequiresTopic(t *testing.T) {
	_, err := NewPubSubHandoffPublisher((*pubsub.Topic)(nil))
	require.Error(t, err)

	_, _, err = OpenTopic(context.Background(), config.PubSubConfig{})
	require.Error(t, err)
}
