// Package tasks holds the task lifecycle core: the approval store for
// tasks issued without a credential, the per-credential queue set, and
// the draw engine that turns queued tasks into delivered images.
package tasks

import (
	"time"

	"github.com/ent0n29/atelier/internal/imagespec"
	"github.com/ent0n29/atelier/internal/platform"
)

// Task is one approved-or-pending unit of work: an ordered set of image
// requests sharing a delivery target and an approval decision.
type Task struct {
	// Images are generated and delivered strictly in slice order.
	Images []imagespec.Image

	IssuedBy   string
	ApprovedBy string

	// Origin is the interactive reply handle the task came from. Its
	// edit token is only valid inside the engine's reply window.
	Origin platform.ReplyContext

	// PendingReply anchors fallback delivery once the reply window has
	// closed: the public acknowledgment or pending-approval notice.
	PendingReply platform.MessageHandle

	CreatedAt time.Time
}
