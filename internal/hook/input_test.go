package hook

import (
	"errors"
	"testing"
	"time"
)

func Test_ReadMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantErr  bool
		wantType string
	}{
		{
			name:     "tab activated with tab",
			input:    `{"type":"tabActivated","tab":{"id":5,"windowId":1,"url":"https://a.test/","title":"A","active":true}}`,
			wantType: TypeTabActivated,
		},
		{
			name:    "tab activated without tab",
			input:   `{"type":"tabActivated","tabId":5}`,
			wantErr: true,
		},
		{
			name:     "tab updated with flat fields",
			input:    `{"type":"tabUpdated","tabId":5,"url":"https://b.test/"}`,
			wantType: TypeTabUpdated,
		},
		{
			name:     "tab removed",
			input:    `{"type":"tabRemoved","tabId":7}`,
			wantType: TypeTabRemoved,
		},
		{
			name:    "tab removed without id",
			input:   `{"type":"tabRemoved"}`,
			wantErr: true,
		},
		{
			name:     "focus lost",
			input:    `{"type":"windowFocusChanged","windowId":-1}`,
			wantType: TypeWindowFocusChanged,
		},
		{
			name:    "focus change without window",
			input:   `{"type":"windowFocusChanged"}`,
			wantErr: true,
		},
		{
			name:     "installed",
			input:    `{"type":"installed","reason":"update"}`,
			wantType: TypeInstalled,
		},
		{
			name:     "startup with windows",
			input:    `{"type":"startup","windows":[{"id":1,"focused":true,"tabs":[{"id":3,"url":"https://a.test/","active":true}]}]}`,
			wantType: TypeStartup,
		},
		{
			name:     "timer start command",
			input:    `{"type":"command","action":"TIMER_START","label":"deep work"}`,
			wantType: TypeCommand,
		},
		{
			name:    "tracker toggle without enabled",
			input:   `{"type":"command","action":"updateTabTracker"}`,
			wantErr: true,
		},
		{
			name:    "negative prune days",
			input:   `{"type":"command","action":"PRUNE","days":-1}`,
			wantErr: true,
		},
		{
			name:    "unknown action",
			input:   `{"type":"command","action":"TIMER_LAP"}`,
			wantErr: true,
		},
		{
			name:    "command without action",
			input:   `{"type":"command"}`,
			wantErr: true,
		},
		{
			name:    "unknown type",
			input:   `{"type":"tabMoved"}`,
			wantErr: true,
		},
		{
			name:    "missing type",
			input:   `{}`,
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			input:   `{"type":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg, err := ReadMessage([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("ReadMessage() expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidMessage) {
					t.Errorf("error %v does not wrap ErrInvalidMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadMessage() unexpected error: %v", err)
			}
			if msg.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", msg.Type, tt.wantType)
			}
		})
	}
}

func Test_ReadMessage_KeepsIDOnValidationError(t *testing.T) {
	t.Parallel()

	msg, err := ReadMessage([]byte(`{"id":"42","type":"command","action":"nope"}`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if msg == nil || msg.ID != "42" {
		t.Fatalf("expected decoded message with id 42, got %+v", msg)
	}
}

func Test_EventTab(t *testing.T) {
	t.Parallel()

	id := 9
	tests := []struct {
		name    string
		msg     Message
		wantID  int
		wantURL string
	}{
		{
			name:    "flat fields",
			msg:     Message{TabID: &id, URL: "https://a.test/"},
			wantID:  9,
			wantURL: "https://a.test/",
		},
		{
			name:    "id only",
			msg:     Message{TabID: &id},
			wantID:  9,
			wantURL: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tab := tt.msg.EventTab()
			if tab.ID != tt.wantID || tab.URL != tt.wantURL {
				t.Errorf("EventTab() = %+v, want id %d url %q", tab, tt.wantID, tt.wantURL)
			}
		})
	}
}

func Test_EventTab_URLOverridesTab(t *testing.T) {
	t.Parallel()

	msg, err := ReadMessage([]byte(`{"type":"tabUpdated","tab":{"id":4,"url":"https://old.test/"},"url":"https://new.test/"}`))
	if err != nil {
		t.Fatalf("ReadMessage() unexpected error: %v", err)
	}
	tab := msg.EventTab()
	if tab.ID != 4 || tab.URL != "https://new.test/" {
		t.Errorf("EventTab() = %+v", tab)
	}
}

func Test_ParseTime(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("X", 2*60*60)
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "empty", input: "", want: time.Time{}},
		{name: "epoch millis", input: "1714557600000", want: time.UnixMilli(1714557600000)},
		{name: "rfc3339", input: "2024-05-01T10:00:00Z", want: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{name: "date is local midnight", input: "2024-05-01", want: time.Date(2024, 5, 1, 0, 0, 0, 0, loc)},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTime(tt.input, loc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTime() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTime() = %v, want %v", got, tt.want)
			}
		})
	}
}
