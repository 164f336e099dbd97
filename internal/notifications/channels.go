package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const userAgent = "strikearr/0.1.0"

// Channel delivers events to one notification backend.
type Channel interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// AppriseChannel posts to an Apprise API server.
type AppriseChannel struct {
	endpoint string
	tag      string
	client   *http.Client
}

// NewAppriseChannel targets {baseURL}/notify/{key}.
func NewAppriseChannel(baseURL, key, tag string, client *http.Client) *AppriseChannel {
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/notify/" + strings.TrimSpace(key)
	return &AppriseChannel{endpoint: endpoint, tag: strings.TrimSpace(tag), client: client}
}

func (a *AppriseChannel) Name() string { return "apprise" }

type apprisePayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Type  string `json:"type"`
	Tag   string `json:"tag,omitempty"`
}

func (a *AppriseChannel) Send(ctx context.Context, event Event) error {
	return postJSON(ctx, a.client, "apprise", a.endpoint, apprisePayload{
		Title: event.Title(),
		Body:  event.Body(),
		Type:  event.Severity(),
		Tag:   a.tag,
	})
}

// NotifiarrChannel posts to the Notifiarr passthrough API.
type NotifiarrChannel struct {
	endpoint  string
	channelID int64
	client    *http.Client
}

// NewNotifiarrChannel targets {baseURL}/api/v1/notification/passthrough/{apiKey}.
// channelID is the Discord channel Notifiarr should post into; a
// non-numeric value leaves routing to the Notifiarr side.
func NewNotifiarrChannel(baseURL, apiKey, channelID string, client *http.Client) *NotifiarrChannel {
	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/api/v1/notification/passthrough/" + strings.TrimSpace(apiKey)
	id, _ := strconv.ParseInt(strings.TrimSpace(channelID), 10, 64)
	return &NotifiarrChannel{endpoint: endpoint, channelID: id, client: client}
}

func (n *NotifiarrChannel) Name() string { return "notifiarr" }

type notifiarrPayload struct {
	Notification notifiarrNotification `json:"notification"`
	Discord      notifiarrDiscord      `json:"discord"`
}

type notifiarrNotification struct {
	Update bool   `json:"update"`
	Name   string `json:"name"`
	Event  string `json:"event"`
}

type notifiarrDiscord struct {
	Color string        `json:"color"`
	Text  notifiarrText `json:"text"`
	IDs   notifiarrIDs  `json:"ids"`
}

type notifiarrText struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Fields      []notifiarrField `json:"fields,omitempty"`
	Footer      string           `json:"footer,omitempty"`
}

type notifiarrField struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Inline bool   `json:"inline"`
}

type notifiarrIDs struct {
	Channel int64 `json:"channel,omitempty"`
}

func (n *NotifiarrChannel) Send(ctx context.Context, event Event) error {
	fields := make([]notifiarrField, 0, 3)
	if event.InstanceID != "" {
		fields = append(fields, notifiarrField{Title: "Instance", Text: event.InstanceID, Inline: true})
	}
	if event.Count > 0 {
		fields = append(fields, notifiarrField{Title: "Strikes", Text: strconv.Itoa(event.Count), Inline: true})
	}
	if event.Item.DownloadClient != "" {
		fields = append(fields, notifiarrField{Title: "Client", Text: event.Item.DownloadClient, Inline: true})
	}
	return postJSON(ctx, n.client, "notifiarr", n.endpoint, notifiarrPayload{
		Notification: notifiarrNotification{Name: "Strikearr", Event: string(event.Type)},
		Discord: notifiarrDiscord{
			Color: discordColor(event.Severity()),
			Text: notifiarrText{
				Title:       event.Title(),
				Description: event.Body(),
				Fields:      fields,
				Footer:      "strikearr",
			},
			IDs: notifiarrIDs{Channel: n.channelID},
		},
	})
}

func discordColor(severity string) string {
	switch severity {
	case "success":
		return "28A745"
	case "failure":
		return "DC3545"
	case "warning":
		return "FFC107"
	default:
		return "17A2B8"
	}
}

// NtfyChannel publishes plain-text messages to an ntfy topic URL.
type NtfyChannel struct {
	endpoint string
	priority string
	client   *http.Client
}

// NewNtfyChannel targets the full topic URL.
func NewNtfyChannel(topic, priority string, client *http.Client) *NtfyChannel {
	return &NtfyChannel{endpoint: strings.TrimSpace(topic), priority: strings.TrimSpace(priority), client: client}
}

func (n *NtfyChannel) Name() string { return "ntfy" }

func (n *NtfyChannel) Send(ctx context.Context, event Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(event.Body()))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", event.Title())
	req.Header.Set("Tags", strings.Join(event.Tags(), ","))
	priority := n.priority
	if event.Type == EventTest {
		priority = "low"
	}
	if priority != "" && priority != "default" {
		req.Header.Set("Priority", priority)
	}
	return do(n.client, req, "ntfy")
}

func postJSON(ctx context.Context, client *http.Client, label, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", label, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", label, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	return do(client, req, label)
}

func do(client *http.Client, req *http.Request, label string) error {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s returned %d: %s", label, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
