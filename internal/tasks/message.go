package tasks

import (
	"fmt"
	"strings"

	"github.com/ent0n29/atelier/internal/imagespec"
)

// Summary composes the visible in-progress message for a task: the
// shared prompt lines, each parameter deduplicated across the batch, and
// the issuer/approver attribution.
func Summary(t *Task) string {
	if len(t.Images) == 0 {
		return ""
	}
	first := t.Images[0]

	lines := []string{
		"> Prompt: " + codeOrNone(first.Prompt),
		"> Negative Prompt: " + codeOrNone(first.Negative),
		"> Shape: " + dedup(t.Images, func(img imagespec.Image) string { return string(img.Shape) }),
		"> Model: " + dedup(t.Images, func(img imagespec.Image) string { return string(img.Model) }),
		"> Sampler: " + dedup(t.Images, func(img imagespec.Image) string { return string(img.Sampler) }),
		"> Steps: " + dedup(t.Images, func(img imagespec.Image) string { return fmt.Sprintf("%d", img.Steps) }),
		"> CFG: " + dedup(t.Images, func(img imagespec.Image) string { return trimFloat(img.CFG) }),
		"> Seed: " + dedup(t.Images, func(img imagespec.Image) string { return fmt.Sprintf("%d", img.Seed) }),
		"Suggested by: <@" + t.IssuedBy + ">",
	}
	if t.ApprovedBy != "" && t.ApprovedBy != t.IssuedBy {
		lines = append(lines, "Approved by: <@"+t.ApprovedBy+">")
	}
	return strings.Join(lines, "\n")
}

// dedup joins the distinct values of one parameter in first-seen order.
func dedup(images []imagespec.Image, field func(imagespec.Image) string) string {
	seen := make(map[string]bool, len(images))
	out := make([]string, 0, len(images))
	for _, img := range images {
		v := field(img)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return strings.Join(out, ", ")
}

func codeOrNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return "None"
	}
	return "`" + v + "`"
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", v), "0"), ".")
}
