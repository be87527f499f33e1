package cluster

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/mensylisir/xmism/logger"
	"github.com/mensylisir/xmism/notify"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultChannelCacheTTL = 5 * time.Minute

	headerOpaqueID = "X-Opaque-Id"
	maxErrorBody   = 4096
)

// Config configures the REST client.
type Config struct {
	Endpoint           string
	Username           string
	Password           string
	Timeout            time.Duration
	InsecureSkipVerify bool
	ChannelCacheTTL    time.Duration
}

// HTTPClient talks to the cluster's REST API.
type HTTPClient struct {
	endpoint *url.URL
	username string
	password string
	http     *http.Client
	channels *gocache.Cache
}

// NewHTTPClient validates cfg and creates a client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("cluster endpoint cannot be empty")
	}
	endpoint, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cluster endpoint %q", cfg.Endpoint)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, errors.Errorf("cluster endpoint %q must use http or https", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ChannelCacheTTL <= 0 {
		cfg.ChannelCacheTTL = DefaultChannelCacheTTL
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.InsecureSkipVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev clusters
		httpClient.Transport = transport
	}

	return &HTTPClient{
		endpoint: endpoint,
		username: cfg.Username,
		password: cfg.Password,
		http:     httpClient,
		channels: gocache.New(cfg.ChannelCacheTTL, 2*cfg.ChannelCacheTTL),
	}, nil
}

// DeleteIndex issues DELETE /{index}.
func (c *HTTPClient) DeleteIndex(ctx context.Context, index string) (AcknowledgedResponse, error) {
	var resp AcknowledgedResponse
	err := c.do(ctx, http.MethodDelete, "/"+url.PathEscape(index), nil, &resp)
	if err != nil {
		return AcknowledgedResponse{}, errors.Wrapf(err, "delete index %s", index)
	}
	return resp, nil
}

// UpdateSettings issues PUT /{index}/_settings with settings as the body.
func (c *HTTPClient) UpdateSettings(ctx context.Context, index string, settings map[string]any) (AcknowledgedResponse, error) {
	var resp AcknowledgedResponse
	err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(index)+"/_settings", settings, &resp)
	if err != nil {
		return AcknowledgedResponse{}, errors.Wrapf(err, "update settings of index %s", index)
	}
	return resp, nil
}

// PublishLegacy posts msg straight to the destination webhook.
func (c *HTTPClient) PublishLegacy(ctx context.Context, msg notify.LegacyMessage) error {
	if err := c.postWebhook(ctx, msg.URL, msg.Headers, msg.Payload()); err != nil {
		return errors.Wrapf(err, "publish %s notification", msg.Type)
	}
	return nil
}

// SendNotification resolves the channel config from the notifications plugin and posts
// the event to the channel's webhook.
func (c *HTTPClient) SendNotification(ctx context.Context, event notify.ChannelEvent) error {
	ch, err := c.channel(ctx, event.ChannelID)
	if err != nil {
		return err
	}
	if !ch.Config.IsEnabled {
		return errors.Errorf("notification channel %s is muted", event.ChannelID)
	}
	msg, err := ch.legacyMessage(event)
	if err != nil {
		return err
	}

	log := logger.Log.WithField("channel", event.ChannelID)
	if event.User != nil {
		log = log.WithField("user", event.User.Name)
	}
	log.Debugf("Sending %s notification %q (reference %s)", msg.Type, event.Title, event.ReferenceID)

	if err := c.postWebhook(ctx, msg.URL, msg.Headers, msg.Payload()); err != nil {
		return errors.Wrapf(err, "send notification to channel %s", event.ChannelID)
	}
	return nil
}

type channelConfig struct {
	ConfigID string `json:"config_id"`
	Config   struct {
		Name       string                `json:"name"`
		ConfigType string                `json:"config_type"`
		IsEnabled  bool                  `json:"is_enabled"`
		Slack      *notify.URLDestination `json:"slack"`
		Chime      *notify.URLDestination `json:"chime"`
		Teams      *notify.URLDestination `json:"microsoft_teams"`
		Webhook    *struct {
			URL          string            `json:"url"`
			HeaderParams map[string]string `json:"header_params"`
		} `json:"webhook"`
	} `json:"config"`
}

func (ch *channelConfig) legacyMessage(event notify.ChannelEvent) (notify.LegacyMessage, error) {
	cfg := ch.Config
	msg := notify.LegacyMessage{Title: event.Title, Body: event.Message}
	switch {
	case cfg.ConfigType == "slack" && cfg.Slack != nil:
		msg.Type, msg.URL = notify.DestinationSlack, cfg.Slack.URL
	case cfg.ConfigType == "chime" && cfg.Chime != nil:
		msg.Type, msg.URL = notify.DestinationChime, cfg.Chime.URL
	case cfg.ConfigType == "microsoft_teams" && cfg.Teams != nil:
		msg.Type, msg.URL = notify.DestinationCustomWebhook, cfg.Teams.URL
	case cfg.ConfigType == "webhook" && cfg.Webhook != nil:
		msg.Type, msg.URL, msg.Headers = notify.DestinationCustomWebhook, cfg.Webhook.URL, cfg.Webhook.HeaderParams
	default:
		return notify.LegacyMessage{}, errors.Errorf("notification channel %s has unsupported type %q", ch.ConfigID, cfg.ConfigType)
	}
	return msg, nil
}

func (c *HTTPClient) channel(ctx context.Context, id string) (*channelConfig, error) {
	if id == "" {
		return nil, errors.New("notification channel id cannot be empty")
	}
	if cached, ok := c.channels.Get(id); ok {
		return cached.(*channelConfig), nil
	}

	var resp struct {
		ConfigList []channelConfig `json:"config_list"`
	}
	if err := c.do(ctx, http.MethodGet, "/_plugins/_notifications/configs/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "get notification channel %s", id)
	}
	if len(resp.ConfigList) == 0 {
		return nil, errors.Errorf("notification channel %s not found", id)
	}
	ch := &resp.ConfigList[0]
	c.channels.Set(id, ch, gocache.DefaultExpiration)
	return ch, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	opaqueID := uuid.NewString()
	req.Header.Set(headerOpaqueID, opaqueID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	logger.Log.WithField("opaque_id", opaqueID).Debugf("%s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "failed to decode response body")
	}
	return nil
}

func (c *HTTPClient) postWebhook(ctx context.Context, target string, headers map[string]string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode notification payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "failed to build notification request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Errorf("webhook responded with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Error) == 0 {
		return &Error{Type: "http_error", Reason: fmt.Sprintf("status %d: %s", status, truncate(raw)), Status: status}
	}

	var body errorBody
	if err := json.Unmarshal(envelope.Error, &body); err != nil {
		// Some endpoints return {"error": "<message>"}.
		var msg string
		if json.Unmarshal(envelope.Error, &msg) == nil {
			return &Error{Type: "http_error", Reason: msg, Status: status}
		}
		return &Error{Type: "http_error", Reason: fmt.Sprintf("status %d: %s", status, truncate(raw)), Status: status}
	}
	return body.toError(status)
}

func truncate(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

var _ Client = (*HTTPClient)(nil)
