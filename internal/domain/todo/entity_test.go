package todo

import "testing"

func TestNewTodo_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		priority     string
		status       string
		wantPriority string
		wantStatus   string
	}{
		{"both omitted", "", "", DefaultPriority, DefaultStatus},
		{"priority omitted", "", StatusDone, DefaultPriority, StatusDone},
		{"status omitted", PriorityHigh, "", PriorityHigh, DefaultStatus},
		{"explicit values kept", PriorityLow, StatusInProgress, PriorityLow, StatusInProgress},
		// 空白だけの文字列は欠損ではない
		{"whitespace kept verbatim", " ", " ", " ", " "},
		{"unknown values kept verbatim", "urgent", "blocked", "urgent", "blocked"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := NewTodo("Buy milk", tt.priority, tt.status)
			if got.Title != "Buy milk" {
				t.Errorf("expected title %q, got %q", "Buy milk", got.Title)
			}
			if got.Priority != tt.wantPriority {
				t.Errorf("expected priority %q, got %q", tt.wantPriority, got.Priority)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, got.Status)
			}
		})
	}
}

func TestNewTodo_EmptyTitleAllowed(t *testing.T) {
	t.Parallel()

	got := NewTodo("", "", "")
	if got.Title != "" {
		t.Errorf("expected empty title, got %q", got.Title)
	}
	if got.Priority != DefaultPriority || got.Status != DefaultStatus {
		t.Errorf("defaults not applied: %#v", got)
	}
}

func TestValidateID(t *testing.T) {
	t.Parallel()

	if err := ValidateID(1); err != nil {
		t.Errorf("expected nil for id=1, got %v", err)
	}
	for _, id := range []int64{0, -1} {
		if err := ValidateID(id); err != ErrInvalidID {
			t.Errorf("expected ErrInvalidID for id=%d, got %v", id, err)
		}
	}
}
