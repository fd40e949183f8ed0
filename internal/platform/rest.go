package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// RESTClient talks to the platform's HTTP API. Interaction-scoped calls
// go through the webhook token carried by the originating event; channel
// calls authenticate with the bot token.
type RESTClient struct {
	baseURL  string
	appID    string
	botToken string
	client   *http.Client
}

func NewRESTClient(baseURL, appID, botToken string, timeout time.Duration) *RESTClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTClient{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		appID:    strings.TrimSpace(appID),
		botToken: strings.TrimSpace(botToken),
		client:   &http.Client{Timeout: timeout},
	}
}

// Interaction materializes a ReplyContext for an inbound interaction
// event. The token is only usable for edits while the platform's reply
// window is open; the returned context does not enforce that itself.
func (c *RESTClient) Interaction(id, token, channelID string, restricted bool, createdAt time.Time) ReplyContext {
	return &restInteraction{
		client:    c,
		id:        id,
		token:     token,
		createdAt: createdAt,
		channel: &restChannel{
			client:     c,
			id:         channelID,
			restricted: restricted,
		},
	}
}

type messageBody struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

type restInteraction struct {
	client    *RESTClient
	id        string
	token     string
	createdAt time.Time
	channel   *restChannel
}

func (i *restInteraction) CreatedAt() time.Time { return i.createdAt }
func (i *restInteraction) Channel() Channel {
	if i.channel == nil || i.channel.id == "" {
		return nil
	}
	return i.channel
}

func (i *restInteraction) Reply(ctx context.Context, p Payload) (MessageHandle, error) {
	callback := fmt.Sprintf("%s/interactions/%s/%s/callback", i.client.baseURL, i.id, i.token)
	if _, err := i.client.sendPayload(ctx, http.MethodPost, callback, p, false); err != nil {
		return nil, err
	}
	return i.fetchOriginal(ctx)
}

func (i *restInteraction) EditReply(ctx context.Context, p Payload) (MessageHandle, error) {
	url := fmt.Sprintf("%s/webhooks/%s/%s/messages/@original", i.client.baseURL, i.client.appID, i.token)
	body, err := i.client.sendPayload(ctx, http.MethodPatch, url, p, true)
	if err != nil {
		return nil, err
	}
	return &restMessage{client: i.client, channel: i.channel, id: body.ID}, nil
}

func (i *restInteraction) FollowUp(ctx context.Context, p Payload) (MessageHandle, error) {
	url := fmt.Sprintf("%s/webhooks/%s/%s", i.client.baseURL, i.client.appID, i.token)
	body, err := i.client.sendPayload(ctx, http.MethodPost, url, p, true)
	if err != nil {
		return nil, err
	}
	return &restMessage{client: i.client, channel: i.channel, id: body.ID}, nil
}

func (i *restInteraction) fetchOriginal(ctx context.Context) (MessageHandle, error) {
	url := fmt.Sprintf("%s/webhooks/%s/%s/messages/@original", i.client.baseURL, i.client.appID, i.token)
	body, err := i.client.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return &restMessage{client: i.client, channel: i.channel, id: body.ID}, nil
}

type restChannel struct {
	client     *RESTClient
	id         string
	restricted bool
}

func (c *restChannel) ID() string       { return c.id }
func (c *restChannel) Restricted() bool { return c.restricted }

func (c *restChannel) Send(ctx context.Context, p Payload) (MessageHandle, error) {
	url := fmt.Sprintf("%s/channels/%s/messages", c.client.baseURL, c.id)
	body, err := c.client.sendPayload(ctx, http.MethodPost, url, p, true)
	if err != nil {
		return nil, err
	}
	return &restMessage{client: c.client, channel: c, id: body.ID}, nil
}

func (c *restChannel) Fetch(ctx context.Context, messageID string) (MessageHandle, error) {
	url := fmt.Sprintf("%s/channels/%s/messages/%s", c.client.baseURL, c.id, messageID)
	body, err := c.client.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return &restMessage{client: c.client, channel: c, id: body.ID}, nil
}

type restMessage struct {
	client  *RESTClient
	channel *restChannel
	id      string
}

func (m *restMessage) ID() string { return m.id }

func (m *restMessage) Reply(ctx context.Context, p Payload) (MessageHandle, error) {
	url := fmt.Sprintf("%s/channels/%s/messages", m.client.baseURL, m.channel.id)
	req := payloadJSON(p)
	req["message_reference"] = map[string]string{"message_id": m.id}
	body, err := m.client.send(ctx, http.MethodPost, url, req, p.Files, true)
	if err != nil {
		return nil, err
	}
	return &restMessage{client: m.client, channel: m.channel, id: body.ID}, nil
}

func payloadJSON(p Payload) map[string]any {
	out := map[string]any{"content": p.Content}
	if p.Ephemeral {
		out["flags"] = 1 << 6
	}
	if p.ApproveID != "" {
		out["components"] = []map[string]any{{
			"type": 1,
			"components": []map[string]any{{
				"type":      2,
				"style":     1,
				"label":     "Approve",
				"custom_id": "approve::" + p.ApproveID,
			}},
		}}
	}
	return out
}

func (c *RESTClient) sendPayload(ctx context.Context, method, url string, p Payload, decode bool) (messageBody, error) {
	return c.send(ctx, method, url, payloadJSON(p), p.Files, decode)
}

func (c *RESTClient) send(ctx context.Context, method, url string, body map[string]any, files []File, decode bool) (messageBody, error) {
	var (
		buf         bytes.Buffer
		contentType string
	)
	if len(files) == 0 {
		contentType = "application/json"
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return messageBody{}, fmt.Errorf("encode payload: %w", err)
		}
	} else {
		w := multipart.NewWriter(&buf)
		meta, err := json.Marshal(body)
		if err != nil {
			return messageBody{}, fmt.Errorf("encode payload: %w", err)
		}
		if err := w.WriteField("payload_json", string(meta)); err != nil {
			return messageBody{}, fmt.Errorf("write payload_json: %w", err)
		}
		for i, f := range files {
			part, err := w.CreateFormFile(fmt.Sprintf("files[%d]", i), f.Name)
			if err != nil {
				return messageBody{}, fmt.Errorf("create file part: %w", err)
			}
			if _, err := part.Write(f.Data); err != nil {
				return messageBody{}, fmt.Errorf("write file part: %w", err)
			}
		}
		if err := w.Close(); err != nil {
			return messageBody{}, fmt.Errorf("close multipart: %w", err)
		}
		contentType = w.FormDataContentType()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return messageBody{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.botToken != "" {
		req.Header.Set("Authorization", "Bot "+c.botToken)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return messageBody{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return messageBody{}, fmt.Errorf("platform status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	if !decode {
		return messageBody{}, nil
	}

	var out messageBody
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return messageBody{}, fmt.Errorf("decode message: %w", err)
	}
	return out, nil
}

func (c *RESTClient) get(ctx context.Context, url string) (messageBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return messageBody{}, fmt.Errorf("create request: %w", err)
	}
	if c.botToken != "" {
		req.Header.Set("Authorization", "Bot "+c.botToken)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return messageBody{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return messageBody{}, ErrMessageNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return messageBody{}, fmt.Errorf("platform status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out messageBody
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return messageBody{}, fmt.Errorf("decode message: %w", err)
	}
	return out, nil
}
