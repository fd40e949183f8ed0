package platform

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	JSON   map[string]any
	Files  []string
}

type fakePlatform struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (f *fakePlatform) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
		}
		mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			mr := multipart.NewReader(r.Body, params["boundary"])
			for {
				part, err := mr.NextPart()
				if err != nil {
					break
				}
				if part.FormName() == "payload_json" {
					data, _ := io.ReadAll(part)
					_ = json.Unmarshal(data, &rec.JSON)
					continue
				}
				rec.Files = append(rec.Files, part.FileName())
			}
		case r.Body != nil:
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				_ = json.Unmarshal(data, &rec.JSON)
			}
		}
		f.mu.Lock()
		f.reqs = append(f.reqs, rec)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-1","channel_id":"chan-1"}`))
	})
}

func (f *fakePlatform) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		t.Fatal("no requests recorded")
	}
	return f.reqs[len(f.reqs)-1]
}

func newRESTFixture(t *testing.T) (*RESTClient, *fakePlatform) {
	t.Helper()
	fake := &fakePlatform{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewRESTClient(srv.URL, "app-1", "bot-token", time.Second), fake
}

func TestEditReplyPatchesOriginal(t *testing.T) {
	client, fake := newRESTFixture(t)
	in := client.Interaction("int-1", "tok-1", "chan-1", false, time.Now())

	handle, err := in.EditReply(context.Background(), Payload{Content: "drawing"})
	if err != nil {
		t.Fatalf("EditReply() error = %v", err)
	}
	if handle.ID() != "msg-1" {
		t.Fatalf("handle.ID() = %q, want msg-1", handle.ID())
	}

	req := fake.last(t)
	if req.Method != http.MethodPatch {
		t.Fatalf("method = %s, want PATCH", req.Method)
	}
	if req.Path != "/webhooks/app-1/tok-1/messages/@original" {
		t.Fatalf("path = %q", req.Path)
	}
	if req.Auth != "Bot bot-token" {
		t.Fatalf("auth = %q, want bot header", req.Auth)
	}
	if req.JSON["content"] != "drawing" {
		t.Fatalf("content = %v, want drawing", req.JSON["content"])
	}
}

func TestEditReplyUploadsFilesAsMultipart(t *testing.T) {
	client, fake := newRESTFixture(t)
	in := client.Interaction("int-1", "tok-1", "chan-1", false, time.Now())

	_, err := in.EditReply(context.Background(), Payload{
		Content: "done",
		Files: []File{
			{Name: "image-1.png", Data: []byte{1}},
			{Name: "image-2.png", Data: []byte{2}},
		},
	})
	if err != nil {
		t.Fatalf("EditReply() error = %v", err)
	}

	req := fake.last(t)
	if len(req.Files) != 2 || req.Files[0] != "image-1.png" || req.Files[1] != "image-2.png" {
		t.Fatalf("files = %v", req.Files)
	}
	if req.JSON["content"] != "done" {
		t.Fatalf("payload_json content = %v", req.JSON["content"])
	}
}

func TestFollowUpCarriesEphemeralFlagAndApproveControl(t *testing.T) {
	client, fake := newRESTFixture(t)
	in := client.Interaction("int-1", "tok-1", "chan-1", false, time.Now())

	if _, err := in.FollowUp(context.Background(), Payload{
		Content:   "pending",
		Ephemeral: true,
		ApproveID: "abc123",
	}); err != nil {
		t.Fatalf("FollowUp() error = %v", err)
	}

	req := fake.last(t)
	if req.Path != "/webhooks/app-1/tok-1" {
		t.Fatalf("path = %q", req.Path)
	}
	if flags, ok := req.JSON["flags"].(float64); !ok || int(flags) != 1<<6 {
		t.Fatalf("flags = %v, want %d", req.JSON["flags"], 1<<6)
	}
	raw, err := json.Marshal(req.JSON["components"])
	if err != nil {
		t.Fatalf("marshal components: %v", err)
	}
	if !strings.Contains(string(raw), `"approve::abc123"`) {
		t.Fatalf("components = %s, want the approve custom_id", raw)
	}
}

func TestMessageReplyThreadsUnderParent(t *testing.T) {
	client, fake := newRESTFixture(t)
	in := client.Interaction("int-1", "tok-1", "chan-1", false, time.Now())
	ch := in.Channel()

	parent, err := ch.Send(context.Background(), Payload{Content: "queued"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := parent.Reply(context.Background(), Payload{Content: "done"}); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	req := fake.last(t)
	if req.Path != "/channels/chan-1/messages" {
		t.Fatalf("path = %q", req.Path)
	}
	ref, ok := req.JSON["message_reference"].(map[string]any)
	if !ok || ref["message_id"] != "msg-1" {
		t.Fatalf("message_reference = %v, want msg-1", req.JSON["message_reference"])
	}
}

func TestChannelFetchMissingMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	client := NewRESTClient(srv.URL, "app-1", "bot-token", time.Second)
	ch := client.Interaction("int-1", "tok-1", "chan-1", false, time.Now()).Channel()

	if _, err := ch.Fetch(context.Background(), "missing"); err != ErrMessageNotFound {
		t.Fatalf("Fetch() error = %v, want ErrMessageNotFound", err)
	}
}

func TestInMemoryInteractionEditThreading(t *testing.T) {
	ch := NewInMemoryChannel(true)
	in := NewInMemoryInteraction(ch, time.Now())

	first, err := in.EditReply(context.Background(), Payload{Content: "one"})
	if err != nil {
		t.Fatalf("EditReply() error = %v", err)
	}
	second, err := in.EditReply(context.Background(), Payload{Content: "two"})
	if err != nil {
		t.Fatalf("EditReply() error = %v", err)
	}
	if first.ID() != second.ID() {
		t.Fatalf("edits produced distinct messages: %q vs %q", first.ID(), second.ID())
	}
	if msgs := ch.Messages(); len(msgs) != 1 || msgs[0].Payload.Content != "two" {
		t.Fatalf("Messages() = %+v, want one message holding the latest edit", msgs)
	}
	if !ch.Restricted() {
		t.Fatal("Restricted() = false, want true")
	}
}
