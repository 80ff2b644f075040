package webhooks

import (
	"errors"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantEvent string
		wantProp  string
		wantErr   error
		anyErr    bool
	}{
		{
			name:      "full envelope",
			body:      `{"id":"d-1","event":"payment.success","property_id":"prop_9","data":{"amount":120000}}`,
			wantEvent: "payment.success",
			wantProp:  "prop_9",
		},
		{
			name:      "event only",
			body:      `{"event":"automation.ping"}`,
			wantEvent: "automation.ping",
		},
		{
			name:    "missing event",
			body:    `{"id":"d-2","data":{}}`,
			wantErr: ErrMissingEventType,
		},
		{
			name:    "blank event",
			body:    `{"event":"   "}`,
			wantErr: ErrMissingEventType,
		},
		{
			name:   "not json",
			body:   `event=payment.success`,
			anyErr: true,
		},
		{
			name:   "trailing data",
			body:   `{"event":"a"} {"event":"b"}`,
			anyErr: true,
		},
		{
			name:   "stray closing brace",
			body:   `{"event":"a"}}`,
			anyErr: true,
		},
		{
			name:   "stray closing bracket",
			body:   `{"event":"a"}]`,
			anyErr: true,
		},
		{
			name:      "trailing whitespace",
			body:      "{\"event\":\"a\"}\n",
			wantEvent: "a",
		},
		{
			name:   "array",
			body:   `[{"event":"a"}]`,
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseEnvelope() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if tt.anyErr {
				if err == nil {
					t.Fatal("ParseEnvelope() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEnvelope() unexpected error: %v", err)
			}
			if env.Event != tt.wantEvent {
				t.Errorf("Event = %q, want %q", env.Event, tt.wantEvent)
			}
			if env.PropertyID != tt.wantProp {
				t.Errorf("PropertyID = %q, want %q", env.PropertyID, tt.wantProp)
			}
		})
	}
}
