// Package pubsub wraps the Cloud Pub/Sub v2 client for a fixed set of topics.
// Only topics named at construction can be published to.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/void1100/Bank-management-system/pkg/config"
	"github.com/void1100/Bank-management-system/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("at least one pubsub topic is required")
	errClosed            = errors.New("pubsub client not initialized")
)

type topicGetter interface {
	GetTopic(ctx context.Context, req *pubsubpb.GetTopicRequest) error
}

type adminClient struct{ c *pubsub.Client }

func (a adminClient) GetTopic(ctx context.Context, req *pubsubpb.GetTopicRequest) error {
	_, err := a.c.TopicAdminClient.GetTopic(ctx, req)
	return err
}

// Client maps short topic names to their project resource paths.
type Client struct {
	client    *pubsub.Client
	admin     topicGetter
	resources map[string]string
}

// NewClient dials Pub/Sub and fails unless every topic already exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, topics []string, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	resources := resourceNames(project, topics)
	if len(resources) == 0 {
		return nil, errNoTopics
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, admin: adminClient{ps}, resources: resources}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", c.Topics()), "pubsub client initialized")
	}
	return c, nil
}

// ResourceName expands a short topic name to projects/<project>/topics/<name>.
// Names that are already resource paths pass through.
func ResourceName(project, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "projects/") {
		return name
	}
	return "projects/" + project + "/topics/" + name
}

func resourceNames(project string, topics []string) map[string]string {
	out := make(map[string]string, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out[t] = ResourceName(project, t)
		}
	}
	return out
}

// Topics returns the configured short names, sorted.
func (c *Client) Topics() []string {
	names := make([]string, 0, len(c.resources))
	for name := range c.resources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Publisher returns nil for topics the client was not built with.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	resource, ok := c.resources[strings.TrimSpace(name)]
	if !ok {
		return nil
	}
	return c.client.Publisher(resource)
}

// Ping checks all topics concurrently and returns the first failure.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errClosed
	}
	g, gctx := errgroup.WithContext(ctx)
	for name, resource := range c.resources {
		g.Go(func() error {
			err := c.admin.GetTopic(gctx, &pubsubpb.GetTopicRequest{Topic: resource})
			switch {
			case status.Code(err) == codes.NotFound:
				return fmt.Errorf("topic %q does not exist", name)
			case err != nil:
				return fmt.Errorf("checking topic %q: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
