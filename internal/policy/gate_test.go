package policy

import (
	"testing"

	"github.com/ent0n29/atelier/internal/imagespec"
)

func TestAllowModel(t *testing.T) {
	tests := []struct {
		name       string
		model      imagespec.Model
		restricted bool
		want       bool
	}{
		{"safe model anywhere", imagespec.ModelSafe, false, true},
		{"safe model restricted", imagespec.ModelSafe, true, true},
		{"full model open channel", imagespec.ModelFull, false, false},
		{"full model restricted", imagespec.ModelFull, true, true},
		{"furry model open channel", imagespec.ModelFurry, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := AllowModel(tc.model, tc.restricted); got != tc.want {
				t.Fatalf("AllowModel(%q, %v) = %v, want %v", tc.model, tc.restricted, got, tc.want)
			}
		})
	}
}

func TestRedactCredential(t *testing.T) {
	if got := RedactCredential(""); got != "" {
		t.Fatalf("RedactCredential(empty) = %q, want empty", got)
	}
	if got := RedactCredential("abc"); got != "****" {
		t.Fatalf("RedactCredential(short) = %q, want ****", got)
	}
	got := RedactCredential("pst-abcdef123456")
	if got != "pst-****" {
		t.Fatalf("RedactCredential() = %q, want %q", got, "pst-****")
	}
}
