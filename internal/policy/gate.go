// Package policy holds the content gate applied before any task is held
// or queued, plus redaction helpers for operator-facing surfaces.
package policy

import "github.com/ent0n29/atelier/internal/imagespec"

// AllowModel reports whether the requested model may run in the target
// channel. Only the safe default model is allowed outside channels
// flagged for restricted content. This gate is independent of the
// approval gate: it applies even when the requester holds a credential.
func AllowModel(model imagespec.Model, restrictedChannel bool) bool {
	return model == imagespec.ModelSafe || restrictedChannel
}
