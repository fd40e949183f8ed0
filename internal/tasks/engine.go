package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ent0n29/atelier/internal/generator"
	"github.com/ent0n29/atelier/internal/imagespec"
	"github.com/ent0n29/atelier/internal/observability"
	"github.com/ent0n29/atelier/internal/platform"
)

// Generator is the slice of the generation client the engine needs.
type Generator interface {
	Generate(ctx context.Context, credential string, req generator.Request) ([]byte, error)
}

// Config tunes the draw engine. Zero values take the production
// defaults; tests shrink the delays.
type Config struct {
	// RetryLimit caps failed generation calls per draw pass. The
	// counter is shared across the whole pass, not per image.
	RetryLimit int

	// ImageDelay runs before every image after the first.
	ImageDelay time.Duration

	// RequeueDelay runs between a pop and the next draw of the same
	// queue, giving the platform time to settle the previous edit.
	RequeueDelay time.Duration

	// ReplyWindow bounds in-place edit delivery, measured from the
	// origin's creation.
	ReplyWindow time.Duration

	// HoldOnFatal restores the historical behavior where a failed head
	// task stays put and blocks its queue permanently. Off by default:
	// failed tasks are popped and the queue advances.
	HoldOnFatal bool
}

func (c Config) withDefaults() Config {
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
	if c.ImageDelay <= 0 {
		c.ImageDelay = 500 * time.Millisecond
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = 500 * time.Millisecond
	}
	if c.ReplyWindow <= 0 {
		c.ReplyWindow = 14*time.Minute + 30*time.Second
	}
	return c
}

// QueueStat is an admin-facing snapshot of one credential's queue.
type QueueStat struct {
	Credential string
	Depth      int
	Busy       bool
}

// Engine owns the per-credential queue set and serializes draws within
// each queue. Draws across distinct credentials proceed independently.
type Engine struct {
	cfg     Config
	gen     Generator
	metrics *observability.Metrics
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queues map[string][]*Task
	busy   map[string]bool
	wg     sync.WaitGroup
}

func NewEngine(cfg Config, gen Generator, metrics *observability.Metrics, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:     cfg.withDefaults(),
		gen:     gen,
		metrics: metrics,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		queues:  make(map[string][]*Task),
		busy:    make(map[string]bool),
	}
}

// Enqueue appends the task to the credential's queue and starts a drain
// when the queue was idle. The busy flag is the sole trigger guard: at
// most one drain runs per credential.
func (e *Engine) Enqueue(credential string, t *Task) {
	e.mu.Lock()
	e.queues[credential] = append(e.queues[credential], t)
	start := !e.busy[credential]
	if start {
		e.busy[credential] = true
	}
	e.publishGaugesLocked()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ObserveTaskEvent("enqueued")
	}
	if start {
		e.wg.Add(1)
		go e.drain(credential)
	}
}

// Stats snapshots every queue, busy or not.
func (e *Engine) Stats() []QueueStat {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]QueueStat, 0, len(e.queues))
	for cred, q := range e.queues {
		out = append(out, QueueStat{Credential: cred, Depth: len(q), Busy: e.busy[cred]})
	}
	return out
}

// Close stops all drains. In-flight generation calls are cancelled; the
// queues are abandoned (no persistence by design).
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) drain(credential string) {
	defer e.wg.Done()
	for {
		if e.ctx.Err() != nil {
			return
		}

		e.mu.Lock()
		q := e.queues[credential]
		if len(q) == 0 {
			delete(e.queues, credential)
			delete(e.busy, credential)
			e.publishGaugesLocked()
			e.mu.Unlock()
			return
		}
		head := q[0]
		e.mu.Unlock()

		started := time.Now()
		err := e.draw(e.ctx, credential, head)
		if e.metrics != nil {
			e.metrics.ObserveDrawDuration(time.Since(started))
		}

		if err != nil {
			if e.metrics != nil {
				e.metrics.ObserveTaskEvent("failed")
			}
			e.log.Error("draw failed",
				"issued_by", head.IssuedBy,
				"images", len(head.Images),
				"error", err,
			)
			e.reportFailure(e.ctx, head, err)
			if e.cfg.HoldOnFatal {
				// Historical behavior: the failed head stays and the
				// busy flag stays set, so the queue never advances.
				return
			}
		} else if e.metrics != nil {
			e.metrics.ObserveTaskEvent("completed")
		}

		e.pop(credential)

		select {
		case <-e.ctx.Done():
			return
		case <-time.After(e.cfg.RequeueDelay):
		}
	}
}

// draw runs one pass: announce, generate each image in order with the
// shared retry budget, and reveal progress through the reply window or
// the fallback channel.
func (e *Engine) draw(ctx context.Context, credential string, t *Task) error {
	content := Summary(t)

	if e.replyWindowOpen(t) {
		if _, err := t.Origin.EditReply(ctx, platform.Payload{Content: content}); err != nil {
			return fmt.Errorf("announce: %w", err)
		}
	}

	files := make([]platform.File, 0, len(t.Images))
	retries := 0
	last := len(t.Images) - 1

	for i, img := range t.Images {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.ImageDelay):
			}
		}

		for {
			started := time.Now()
			data, err := e.gen.Generate(ctx, credential, request(img))
			if err != nil {
				retries++
				if e.metrics != nil {
					e.metrics.ObserveGeneration("error")
				}
				if retries >= e.cfg.RetryLimit {
					return fmt.Errorf("generation failed after %d attempts: %w", retries, err)
				}
				continue
			}
			if e.metrics != nil {
				e.metrics.ObserveGeneration("ok")
				e.metrics.ObserveStage(observability.StageGenerate, time.Since(started))
			}
			files = append(files, platform.File{Name: fmt.Sprintf("image-%d.png", i+1), Data: data})
			break
		}

		payload := platform.Payload{Content: content, Files: files}
		delivery := time.Now()
		// The window is re-checked on every edit: a long batch can
		// cross the boundary mid-flight.
		if e.replyWindowOpen(t) {
			if _, err := t.Origin.EditReply(ctx, payload); err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
			if e.metrics != nil {
				e.metrics.ObserveDelivery("edit")
				e.metrics.ObserveStage(observability.StageDeliver, time.Since(delivery))
			}
		} else if i == last {
			if err := e.deliverFallback(ctx, t, payload); err != nil {
				return fmt.Errorf("deliver: %w", err)
			}
			if e.metrics != nil {
				e.metrics.ObserveStage(observability.StageDeliver, time.Since(delivery))
			}
		}
	}
	return nil
}

// deliverFallback posts the payload without the interaction token:
// threaded under the pending reply when one exists, straight to the
// channel otherwise.
func (e *Engine) deliverFallback(ctx context.Context, t *Task, p platform.Payload) error {
	var ch platform.Channel
	if t.Origin != nil {
		ch = t.Origin.Channel()
	}

	if t.PendingReply != nil {
		anchor := t.PendingReply
		if ch != nil {
			if fetched, err := ch.Fetch(ctx, t.PendingReply.ID()); err == nil {
				anchor = fetched
			}
		}
		if _, err := anchor.Reply(ctx, p); err != nil {
			return err
		}
		if e.metrics != nil {
			e.metrics.ObserveDelivery("reply")
		}
		return nil
	}

	if ch == nil {
		return errors.New("no delivery channel available")
	}
	if _, err := ch.Send(ctx, p); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.ObserveDelivery("send")
	}
	return nil
}

// reportFailure tells the user the draw died. Delivery problems here are
// logged only; queue bookkeeping must not depend on them.
func (e *Engine) reportFailure(ctx context.Context, t *Task, drawErr error) {
	payload := platform.Payload{Content: fmt.Sprintf(":x: Generation failed: %v", drawErr)}

	var err error
	if e.replyWindowOpen(t) {
		_, err = t.Origin.EditReply(ctx, payload)
	} else {
		err = e.deliverFallback(ctx, t, payload)
	}
	if err != nil {
		e.log.Error("failure report not delivered", "error", err, "draw_error", drawErr)
	}
}

func (e *Engine) replyWindowOpen(t *Task) bool {
	if t.Origin == nil {
		return false
	}
	return time.Since(t.Origin.CreatedAt()) < e.cfg.ReplyWindow
}

func (e *Engine) pop(credential string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	q := e.queues[credential]
	if len(q) == 0 {
		return
	}
	e.queues[credential] = q[1:]
	e.publishGaugesLocked()
}

func (e *Engine) publishGaugesLocked() {
	if e.metrics == nil {
		return
	}
	depth := 0
	for _, q := range e.queues {
		depth += len(q)
	}
	busy := 0
	for _, b := range e.busy {
		if b {
			busy++
		}
	}
	e.metrics.SetQueueDepth(depth)
	e.metrics.SetBusyQueues(busy)
}

func request(img imagespec.Image) generator.Request {
	width, height := img.Resolution()
	return generator.Request{
		Prompt:   img.Prompt,
		Negative: img.Negative,
		Width:    width,
		Height:   height,
		Sampler:  string(img.Sampler),
		Model:    string(img.Model),
		Scale:    img.CFG,
		Steps:    img.Steps,
		Seed:     img.Seed,
	}
}
