package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendpush/trendpush/internal/worker"
)

const (
	testProject      = "test-project"
	testTopic        = "projects/" + testProject + "/topics/trend-events"
	testSubscription = "trend-events-worker"
)

func TestPubSubHandler_AcksEveryOutcome(t *testing.T) {
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	t.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := pubsub.NewClient(ctx, testProject)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: testTopic})
	require.NoError(t, err)
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:  "projects/" + testProject + "/subscriptions/" + testSubscription,
		Topic: testTopic,
	})
	require.NoError(t, err)

	sender := &fakeSender{err: errors.New("quota exceeded")}
	trigger := newTrigger(t, sender, zerolog.Nop())

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        testProject,
		SubscriptionName: testSubscription,
		Trigger:          trigger,
		Logger:           zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = handler.Close() })

	done := make(chan error, 1)
	go func() { done <- handler.Start(ctx) }()

	publisher := client.Publisher(testTopic)
	defer publisher.Stop()
	for _, data := range []string{`not json`, `{"contentType":"match","contentId":"42"}`} {
		_, err := publisher.Publish(ctx, &pubsub.Message{Data: []byte(data)}).Get(ctx)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return trigger.GetMetrics().Received == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		msgs := srv.Messages()
		if len(msgs) != 2 {
			return false
		}
		for _, m := range msgs {
			if m.Acks == 0 {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	m := trigger.GetMetrics()
	assert.Equal(t, int64(1), m.Invalid)
	assert.Equal(t, int64(1), m.Failed)
	assert.Equal(t, 1, sender.calls)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pubsub handler did not stop")
	}
}
