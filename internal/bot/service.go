// Package bot turns platform interactions into queued tasks. It owns the
// approval flow: requests from credentialed users go straight to their
// queue, everyone else's are held until a credentialed user approves.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ent0n29/atelier/internal/credentials"
	"github.com/ent0n29/atelier/internal/generator"
	"github.com/ent0n29/atelier/internal/imagespec"
	"github.com/ent0n29/atelier/internal/observability"
	"github.com/ent0n29/atelier/internal/platform"
	"github.com/ent0n29/atelier/internal/policy"
	"github.com/ent0n29/atelier/internal/prompt"
	"github.com/ent0n29/atelier/internal/tasks"
)

// GenerateOptions are the raw values of a generate command. Zero values
// mean "not provided"; Seed < 0 requests a random seed.
type GenerateOptions struct {
	Prompt   string
	Negative string
	Shape    string
	Model    string
	Sampler  string
	CFG      float64
	Steps    int
	Batch    int
	Seed     int64
}

// RandomOptions tune a random-prompt generation; the prompt itself is
// composed server-side.
type RandomOptions struct {
	Shape   string
	Model   string
	Sampler string
	CFG     float64
	Steps   int
	Batch   int
	Seed    int64
}

// SeriesOptions describe a parameter sweep anchored at one base image.
type SeriesOptions struct {
	Prompt   string
	Negative string
	Shape    string
	Model    string
	Sampler  string
	CFG      float64
	Steps    int
	Seed     int64
	Axis     string
}

// Service is the gateway-facing command handler.
type Service struct {
	creds   credentials.Store
	engine  *tasks.Engine
	pending *tasks.PendingStore
	gen     generator.Client
	metrics *observability.Metrics
	log     *slog.Logger
}

func NewService(creds credentials.Store, engine *tasks.Engine, pending *tasks.PendingStore, gen generator.Client, metrics *observability.Metrics, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		creds:   creds,
		engine:  engine,
		pending: pending,
		gen:     gen,
		metrics: metrics,
		log:     log,
	}
}

// HandleInteraction routes one gateway event to its command handler.
func (s *Service) HandleInteraction(ctx context.Context, ev platform.InteractionEvent) {
	if ev.Kind == "approve" {
		s.HandleApprove(ctx, ev.Origin, ev.UserID, ev.TaskID)
		return
	}

	seed := int64(-1)
	if ev.Options.Seed != nil {
		seed = *ev.Options.Seed
	}

	switch ev.Command {
	case "generate":
		s.HandleGenerate(ctx, ev.Origin, ev.UserID, GenerateOptions{
			Prompt:   ev.Options.Prompt,
			Negative: ev.Options.Negative,
			Shape:    ev.Options.Shape,
			Model:    ev.Options.Model,
			Sampler:  ev.Options.Sampler,
			CFG:      ev.Options.CFG,
			Steps:    ev.Options.Steps,
			Batch:    ev.Options.Batch,
			Seed:     seed,
		})
	case "random":
		s.HandleRandom(ctx, ev.Origin, ev.UserID, RandomOptions{
			Shape:   ev.Options.Shape,
			Model:   ev.Options.Model,
			Sampler: ev.Options.Sampler,
			CFG:     ev.Options.CFG,
			Steps:   ev.Options.Steps,
			Batch:   ev.Options.Batch,
			Seed:    seed,
		})
	case "series":
		s.HandleSeries(ctx, ev.Origin, ev.UserID, SeriesOptions{
			Prompt:   ev.Options.Prompt,
			Negative: ev.Options.Negative,
			Shape:    ev.Options.Shape,
			Model:    ev.Options.Model,
			Sampler:  ev.Options.Sampler,
			CFG:      ev.Options.CFG,
			Steps:    ev.Options.Steps,
			Seed:     seed,
			Axis:     ev.Options.Type,
		})
	case "auth":
		s.HandleAuth(ctx, ev.Origin, ev.UserID, ev.Options.Email, ev.Options.Password)
	case "revoke":
		s.HandleRevoke(ctx, ev.Origin, ev.UserID)
	default:
		s.log.Warn("unknown command", "command", ev.Command, "user", ev.UserID)
		s.respond(ctx, ev.Origin, platform.Payload{Content: "Unknown command.", Ephemeral: true})
	}
}

func (s *Service) HandleGenerate(ctx context.Context, origin platform.ReplyContext, user string, opts GenerateOptions) {
	base := imagespec.New(opts.Prompt, imagespec.Options{
		Negative: opts.Negative,
		Shape:    opts.Shape,
		Model:    opts.Model,
		Sampler:  opts.Sampler,
		CFG:      opts.CFG,
		Steps:    opts.Steps,
		Seed:     opts.Seed,
	})
	s.submit(ctx, origin, user, imagespec.Batch(base, opts.Batch))
}

func (s *Service) HandleRandom(ctx context.Context, origin platform.ReplyContext, user string, opts RandomOptions) {
	base := imagespec.New(prompt.Random(), imagespec.Options{
		Shape:   opts.Shape,
		Model:   opts.Model,
		Sampler: opts.Sampler,
		CFG:     opts.CFG,
		Steps:   opts.Steps,
		Seed:    opts.Seed,
	})
	s.submit(ctx, origin, user, imagespec.Batch(base, opts.Batch))
}

func (s *Service) HandleSeries(ctx context.Context, origin platform.ReplyContext, user string, opts SeriesOptions) {
	base := imagespec.New(opts.Prompt, imagespec.Options{
		Negative: opts.Negative,
		Shape:    opts.Shape,
		Model:    opts.Model,
		Sampler:  opts.Sampler,
		CFG:      opts.CFG,
		Steps:    opts.Steps,
		Seed:     opts.Seed,
	})
	axis := imagespec.ParseSeriesAxis(opts.Axis)
	s.submit(ctx, origin, user, imagespec.Series(base, axis))
}

// HandleAuth exchanges platform credentials for a backend token and
// stores it for the user. All responses are ephemeral.
func (s *Service) HandleAuth(ctx context.Context, origin platform.ReplyContext, user, email, password string) {
	token, err := s.gen.Login(ctx, email, password)
	if err != nil {
		s.log.Warn("login failed", "user", user, "error", err)
		s.respond(ctx, origin, platform.Payload{Content: "Login failed. Check your email and password.", Ephemeral: true})
		return
	}
	if err := s.creds.Set(ctx, user, token); err != nil {
		s.log.Error("credential store failed", "user", user, "error", err)
		s.respond(ctx, origin, platform.Payload{Content: "Could not store your credential. Try again later.", Ephemeral: true})
		return
	}
	s.log.Info("credential stored", "user", user, "credential", policy.RedactCredential(token))
	s.respond(ctx, origin, platform.Payload{Content: "Authenticated. Your requests now run on your own queue.", Ephemeral: true})
}

func (s *Service) HandleRevoke(ctx context.Context, origin platform.ReplyContext, user string) {
	if err := s.creds.Clear(ctx, user); err != nil {
		s.log.Error("credential clear failed", "user", user, "error", err)
		s.respond(ctx, origin, platform.Payload{Content: "Could not clear your credential. Try again later.", Ephemeral: true})
		return
	}
	s.respond(ctx, origin, platform.Payload{Content: "Credential cleared.", Ephemeral: true})
}

// HandleApprove moves a held task onto the approver's queue. A failed
// credential lookup leaves the task held so someone else can approve it.
func (s *Service) HandleApprove(ctx context.Context, origin platform.ReplyContext, approver, taskID string) {
	if _, ok := s.pending.Get(taskID); !ok {
		s.respond(ctx, origin, platform.Payload{Content: "That task is no longer waiting. It was approved already or expired.", Ephemeral: true})
		return
	}

	cred, err := s.creds.Current(ctx, approver)
	if err != nil {
		if !errors.Is(err, credentials.ErrNotFound) {
			s.log.Error("credential lookup failed", "user", approver, "error", err)
		}
		s.respond(ctx, origin, platform.Payload{Content: "You need to authenticate before approving tasks.", Ephemeral: true})
		return
	}

	task, ok := s.pending.Take(taskID)
	if !ok {
		s.respond(ctx, origin, platform.Payload{Content: "That task is no longer waiting. It was approved already or expired.", Ephemeral: true})
		return
	}
	task.ApprovedBy = approver

	if s.metrics != nil {
		s.metrics.ObserveApprovalWait(time.Since(task.CreatedAt))
		s.metrics.SetPendingHeld(s.pending.Len())
		s.metrics.ObserveTaskEvent("approved")
	}

	s.engine.Enqueue(cred, task)
	s.respond(ctx, origin, platform.Payload{Content: fmt.Sprintf("Approved. <@%s>'s task is queued.", task.IssuedBy), Ephemeral: true})
}

// submit gates, acknowledges and routes a built task. Credentialed users
// enqueue directly; everyone else gets a public pending notice with an
// approval control plus an ephemeral hint.
func (s *Service) submit(ctx context.Context, origin platform.ReplyContext, user string, images []imagespec.Image) {
	// Gateway dispatch can hand over events with no reply context when
	// the REST client is absent.
	if origin == nil {
		s.log.Error("interaction dropped: no reply context", "user", user)
		return
	}
	if len(images) == 0 {
		s.respond(ctx, origin, platform.Payload{Content: "Nothing to draw.", Ephemeral: true})
		return
	}

	ch := origin.Channel()
	if ch == nil {
		s.respond(ctx, origin, platform.Payload{Content: "This command only works inside a channel.", Ephemeral: true})
		return
	}
	if !policy.AllowModel(images[0].Model, ch.Restricted()) {
		s.respond(ctx, origin, platform.Payload{Content: "That model is only available in restricted channels.", Ephemeral: true})
		return
	}

	task := &tasks.Task{
		Images:    images,
		IssuedBy:  user,
		Origin:    origin,
		CreatedAt: time.Now(),
	}

	cred, err := s.creds.Current(ctx, user)
	switch {
	case err == nil:
		task.ApprovedBy = user
		handle, rerr := origin.EditReply(ctx, platform.Payload{Content: tasks.Summary(task) + "\nQueued."})
		if rerr != nil {
			s.log.Error("acknowledgment failed", "user", user, "error", rerr)
		} else {
			task.PendingReply = handle
		}
		s.engine.Enqueue(cred, task)

	case errors.Is(err, credentials.ErrNotFound):
		id := s.pending.Hold(task)
		handle, rerr := origin.EditReply(ctx, platform.Payload{
			Content:   tasks.Summary(task) + "\nWaiting for an authenticated user to approve.",
			ApproveID: id,
		})
		if rerr != nil {
			s.log.Error("pending notice failed", "user", user, "error", rerr)
		} else {
			task.PendingReply = handle
		}
		if _, ferr := origin.FollowUp(ctx, platform.Payload{
			Content:   "You are not authenticated, so your request needs approval. Use the auth command to run on your own queue.",
			Ephemeral: true,
		}); ferr != nil {
			s.log.Error("follow-up failed", "user", user, "error", ferr)
		}
		if s.metrics != nil {
			s.metrics.SetPendingHeld(s.pending.Len())
			s.metrics.ObserveTaskEvent("held")
		}

	default:
		s.log.Error("credential lookup failed", "user", user, "error", err)
		s.respond(ctx, origin, platform.Payload{Content: "Something went wrong looking up your credential. Try again later.", Ephemeral: true})
	}
}

func (s *Service) respond(ctx context.Context, origin platform.ReplyContext, p platform.Payload) {
	if origin == nil {
		return
	}
	if _, err := origin.EditReply(ctx, p); err != nil {
		s.log.Error("response failed", "error", err)
	}
}
