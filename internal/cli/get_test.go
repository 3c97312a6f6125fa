package cli

import (
	"testing"
)

func TestToGjsonPath(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{
			name:  "plain dotted path",
			field: "train.optimizer.lr",
			want:  "train.optimizer.lr",
		},
		{
			name:  "bracketed index",
			field: "data.transform[0].type",
			want:  "data.transform.0.type",
		},
		{
			name:  "multiple indices",
			field: "data.transform[1].patch_size",
			want:  "data.transform.1.patch_size",
		},
		{
			name:  "top-level key",
			field: "model",
			want:  "model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toGjsonPath(tt.field); got != tt.want {
				t.Errorf("toGjsonPath(%q) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}
