// Package notify models the payloads delivered by the notification step: legacy
// destinations (a webhook URL per destination type) and notification channels (a
// channel id resolved by the cluster's notifications plugin).
package notify

import (
	"strings"

	"github.com/pkg/errors"
)

// Destination types supported by legacy destinations.
const (
	DestinationSlack         = "slack"
	DestinationChime         = "chime"
	DestinationCustomWebhook = "custom_webhook"
)

// SeverityInfo is the severity of every channel event the runner sends.
const SeverityInfo = "info"

// URLDestination is a webhook target.
type URLDestination struct {
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Destination is a legacy notification target. Exactly one of the fields is set.
type Destination struct {
	Slack         *URLDestination `yaml:"slack,omitempty" json:"slack,omitempty"`
	Chime         *URLDestination `yaml:"chime,omitempty" json:"chime,omitempty"`
	CustomWebhook *URLDestination `yaml:"customWebhook,omitempty" json:"custom_webhook,omitempty"`
}

// Type returns the destination type, or "" when none is configured.
func (d *Destination) Type() string {
	switch {
	case d == nil:
		return ""
	case d.Slack != nil:
		return DestinationSlack
	case d.Chime != nil:
		return DestinationChime
	case d.CustomWebhook != nil:
		return DestinationCustomWebhook
	}
	return ""
}

func (d *Destination) target() *URLDestination {
	switch d.Type() {
	case DestinationSlack:
		return d.Slack
	case DestinationChime:
		return d.Chime
	case DestinationCustomWebhook:
		return d.CustomWebhook
	}
	return nil
}

// Validate checks that exactly one destination with a URL is configured.
func (d *Destination) Validate() error {
	set := 0
	for _, u := range []*URLDestination{d.Slack, d.Chime, d.CustomWebhook} {
		if u == nil {
			continue
		}
		set++
		if strings.TrimSpace(u.URL) == "" {
			return errors.Errorf("destination %s requires a url", d.Type())
		}
	}
	if set != 1 {
		return errors.Errorf("destination must define exactly one of slack, chime or customWebhook, got %d", set)
	}
	return nil
}

// LegacyMessage is a message ready to be posted to a legacy destination.
type LegacyMessage struct {
	Type    string
	URL     string
	Headers map[string]string
	Title   string
	Body    string
}

// BuildLegacyMessage renders body into the payload format of the destination type.
func (d *Destination) BuildLegacyMessage(title, body string) (LegacyMessage, error) {
	if err := d.Validate(); err != nil {
		return LegacyMessage{}, err
	}
	t := d.target()
	return LegacyMessage{
		Type:    d.Type(),
		URL:     t.URL,
		Headers: t.Headers,
		Title:   title,
		Body:    body,
	}, nil
}

// Payload returns the JSON document posted for the message.
func (m LegacyMessage) Payload() map[string]any {
	switch m.Type {
	case DestinationSlack:
		return map[string]any{"text": m.Body}
	case DestinationChime:
		return map[string]any{"Content": m.Body}
	default:
		return map[string]any{"title": m.Title, "message": m.Body}
	}
}

// Channel references a notification channel configured in the cluster.
type Channel struct {
	ID string `yaml:"id" json:"id"`
}

// User identifies who triggered the notification, for auditing.
type User struct {
	Name         string   `yaml:"name" json:"name"`
	BackendRoles []string `yaml:"backendRoles,omitempty" json:"backend_roles,omitempty"`
	Roles        []string `yaml:"roles,omitempty" json:"roles,omitempty"`
}

// ChannelEvent is one message sent through a notification channel.
type ChannelEvent struct {
	ChannelID   string
	Title       string
	ReferenceID string
	Severity    string
	Message     string
	User        *User
}
