package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcp "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

var (
	ErrNotInitialized     = errors.New("pubsub client not initialized")
	ErrTopicNotConfigured = errors.New("pubsub topic not configured")
)

// Message is the transport-neutral shape handed to Publish.
type Message struct {
	Data        []byte
	Attributes  map[string]string
	OrderingKey string
}

// Client owns the Pub/Sub connection and one cached publisher per topic.
type Client struct {
	conn    *gcp.Client
	project string
	cfg     config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*gcp.Publisher
}

// NewClient connects and verifies every configured subscription exists.
// Publisher-only processes leave NotificationSubscription blank.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	if project == "" {
		return nil, errors.New("pubsub: MARKETPLACE_GCP_PROJECT_ID is required")
	}
	conn, err := gcp.NewClient(ctx, project, credentialOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("connect pubsub: %w", err)
	}
	c := &Client{conn: conn, project: project, cfg: cfg, publishers: map[string]*gcp.Publisher{}}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "gcp_project", project), "pubsub client initialized")
	}
	return c, nil
}

func credentialOptions(cfg config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(cfg.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	if path := strings.TrimSpace(cfg.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping checks the configured subscriptions through the admin API.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return ErrNotInitialized
	}
	for _, name := range subscriptionNames(c.cfg) {
		_, err := c.conn.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
			Subscription: subscriptionPath(c.project, name),
		})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("pubsub subscription %q does not exist", name)
		case err != nil:
			return fmt.Errorf("check pubsub subscription %q: %w", name, err)
		}
	}
	return nil
}

func subscriptionNames(cfg config.PubSubConfig) []string {
	var names []string
	if name := strings.TrimSpace(cfg.NotificationSubscription); name != "" {
		names = append(names, name)
	}
	return names
}

// Publish sends msg to topic and waits for the server id. A failed ordered
// publish pauses its key, so the key is resumed before returning.
func (c *Client) Publish(ctx context.Context, topic string, msg Message) (string, error) {
	pub, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	out := &gcp.Message{Data: msg.Data, Attributes: msg.Attributes}
	if c.cfg.OrderedPublishing {
		out.OrderingKey = msg.OrderingKey
	}
	id, err := pub.Publish(ctx, out).Get(ctx)
	if err != nil {
		if out.OrderingKey != "" {
			pub.ResumePublish(out.OrderingKey)
		}
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}
	return id, nil
}

func (c *Client) publisher(topic string) (*gcp.Publisher, error) {
	if c == nil || c.conn == nil {
		return nil, ErrNotInitialized
	}
	path := topicPath(c.project, topic)
	if path == "" {
		return nil, fmt.Errorf("%w: %q", ErrTopicNotConfigured, topic)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[path]; ok {
		return pub, nil
	}
	pub := c.conn.Publisher(path)
	pub.EnableMessageOrdering = c.cfg.OrderedPublishing
	c.publishers[path] = pub
	return pub, nil
}

// NotificationSubscription returns the subscriber feeding the notification
// worker, or nil when none is configured.
func (c *Client) NotificationSubscription() *gcp.Subscriber {
	if c == nil || c.conn == nil {
		return nil
	}
	path := subscriptionPath(c.project, c.cfg.NotificationSubscription)
	if path == "" {
		return nil
	}
	sub := c.conn.Subscriber(path)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	return sub
}

// Close flushes pending publishes and then closes the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	c.mu.Lock()
	for _, pub := range c.publishers {
		pub.Stop()
	}
	c.publishers = map[string]*gcp.Publisher{}
	c.mu.Unlock()
	return c.conn.Close()
}
