// Package pubsub wraps the Pub/Sub v2 client for the outbox publisher.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("at least one pubsub topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client publishes to a fixed set of topics. Publishers are created once per
// topic and flushed on Close.
type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and fails unless every topic already exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, topics []string, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	names, err := resourceNames(projectID, topics)
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	raw, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: raw, projectID: projectID, topics: names, publishers: map[string]*pubsub.Publisher{}}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", names), "pubsub.ready")
	}
	return c, nil
}

// Ping confirms every configured topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, name := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %s does not exist", name)
		case err != nil:
			return fmt.Errorf("get topic %s: %w", name, err)
		}
	}
	return nil
}

// Publisher returns the shared publisher for topic, or nil when the client or topic is unusable.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := topicResourceName(c.projectID, topic)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[name]; ok {
		return p
	}
	p := c.client.Publisher(name)
	c.publishers[name] = p
	return p
}

// Close flushes pending messages on every publisher, then closes the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func resourceNames(projectID string, topics []string) ([]string, error) {
	var (
		names []string
		errs  error
		seen  = map[string]bool{}
	)
	for _, topic := range topics {
		if strings.TrimSpace(topic) == "" {
			continue
		}
		name := topicResourceName(projectID, topic)
		if name == "" {
			errs = multierr.Append(errs, fmt.Errorf("topic %q cannot be resolved", topic))
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if errs != nil {
		return nil, errs
	}
	if len(names) == 0 {
		return nil, errNoTopics
	}
	return names, nil
}

// topicResourceName expands a short topic id to projects/<p>/topics/<id>; full names pass through.
func topicResourceName(projectID, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ""
	}
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	if projectID = strings.TrimSpace(projectID); projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + topic
}
