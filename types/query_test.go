package types

import "testing"

func TestParseAgentMode(t *testing.T) {
	t.Parallel()

	for _, mode := range AgentModes {
		got, err := ParseAgentMode(string(mode))
		if err != nil {
			t.Fatalf("ParseAgentMode(%q): %v", mode, err)
		}
		if got != mode {
			t.Fatalf("ParseAgentMode(%q) = %q", mode, got)
		}
	}
}

func TestParseAgentMode_RejectsUnknown(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "chat", "QA", "summarize", "qa "} {
		if _, err := ParseAgentMode(s); err == nil {
			t.Fatalf("ParseAgentMode(%q): expected error", s)
		} else if GetErrorCode(err) != ErrInvalidRequest {
			t.Fatalf("ParseAgentMode(%q): expected INVALID_REQUEST, got %v", s, err)
		}
	}
}

func TestQueryValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"valid without override", Query{Text: "what is the termination clause?"}, false},
		{"valid with override", Query{Text: "summarise this", ModeOverride: ModeSummarise}, false},
		{"empty text", Query{}, true},
		{"bad override", Query{Text: "x", ModeOverride: AgentMode("chat")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
