package pubsub

import (
	"context"
	"sync"
	"testing"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/void1100/Bank-management-system/pkg/config"
)

type fakeAdmin struct {
	mu      sync.Mutex
	missing map[string]bool
	seen    []string
}

func (f *fakeAdmin) GetTopic(_ context.Context, req *pubsubpb.GetTopicRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, req.GetTopic())
	if f.missing[req.GetTopic()] {
		return status.Error(codes.NotFound, "no such topic")
	}
	return nil
}

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/bank-prod/topics/bank-fraud-events", ResourceName("bank-prod", " bank-fraud-events "))
	assert.Equal(t, "projects/other/topics/t1", ResourceName("bank-prod", "projects/other/topics/t1"))
	assert.Empty(t, ResourceName("bank-prod", " "))
}

func TestResourceNamesDropsBlanksAndDuplicates(t *testing.T) {
	got := resourceNames("p", []string{" a", "", "a", "b "})
	assert.Equal(t, map[string]string{"a": "projects/p/topics/a", "b": "projects/p/topics/b"}, got)
}

func TestPingChecksEveryTopic(t *testing.T) {
	admin := &fakeAdmin{missing: map[string]bool{}}
	c := &Client{admin: admin, resources: resourceNames("p", []string{"tx", "fraud"})}

	require.NoError(t, c.Ping(context.Background()))
	assert.ElementsMatch(t, []string{"projects/p/topics/tx", "projects/p/topics/fraud"}, admin.seen)
	assert.Equal(t, []string{"fraud", "tx"}, c.Topics())

	admin.missing["projects/p/topics/fraud"] = true
	require.ErrorContains(t, c.Ping(context.Background()), `topic "fraud" does not exist`)
}

func TestPublisherOnlyForConfiguredTopics(t *testing.T) {
	var nilClient *Client
	assert.Nil(t, nilClient.Publisher("t1"))

	c := &Client{resources: resourceNames("p", []string{"tx"})}
	assert.Nil(t, c.Publisher("tx"), "no underlying client")
}

func TestNewClientValidatesInput(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, []string{"t"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "p"}, []string{" "}, nil)
	require.ErrorIs(t, err, errNoTopics)
}

func TestPingUninitialized(t *testing.T) {
	var c *Client
	require.ErrorIs(t, c.Ping(context.Background()), errClosed)
	require.NoError(t, c.Close())
}
