package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":"start_call"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.SessionID != "s1" || control.Action != ActionStartCall {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsUnknownAction(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"client_control","session_id":"s1","action":"barge_in"}`)); err == nil {
		t.Fatalf("expected validation error for unknown action")
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageSTTResult(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"stt_result","session_id":"s1","text":"I like tea","is_final":true}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	res, ok := msg.(STTResult)
	if !ok {
		t.Fatalf("message type = %T, want STTResult", msg)
	}
	if res.Text != "I like tea" || !res.IsFinal {
		t.Fatalf("unexpected stt_result: %+v", res)
	}
}

func TestParseClientMessageStatusValidation(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"stt ended", `{"type":"stt_status","session_id":"s1","status":"ended"}`, true},
		{"stt error", `{"type":"stt_status","session_id":"s1","status":"error","code":"network"}`, true},
		{"stt unknown", `{"type":"stt_status","session_id":"s1","status":"paused"}`, false},
		{"tts start", `{"type":"tts_status","session_id":"s1","utterance_id":"u1","status":"start"}`, true},
		{"tts missing utterance", `{"type":"tts_status","session_id":"s1","status":"end"}`, false},
		{"voices", `{"type":"voices_report","session_id":"s1","voices":[{"id":"v1","name":"Samantha","lang":"en-US"}]}`, true},
		{"voice settings", `{"type":"voice_settings","session_id":"s1","rate":1.2,"pitch":1}`, true},
		{"missing session", `{"type":"voice_settings","rate":1.2}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseClientMessage([]byte(tc.raw))
			if tc.ok && err != nil {
				t.Fatalf("ParseClientMessage() error = %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("ParseClientMessage() expected error")
			}
		})
	}
}

func TestParseClientMessageInvalidJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{not json`)); err == nil {
		t.Fatalf("expected envelope error")
	}
}

func TestTypeOf(t *testing.T) {
	msgs := []any{
		ActivityState{Type: TypeActivityState},
		SpeakCommand{Type: TypeSpeakCommand},
		ErrorEvent{Type: TypeErrorEvent},
	}
	for _, m := range msgs {
		got, ok := TypeOf(m)
		if !ok || got == "" {
			t.Fatalf("TypeOf(%T) = %q, %v", m, got, ok)
		}
	}
	if _, ok := TypeOf("not a message"); ok {
		t.Fatalf("TypeOf(string) should report false")
	}
}

func BenchmarkParseClientMessageSTTResult(b *testing.B) {
	raw := []byte(`{"type":"stt_result","session_id":"s1","text":"I usually play football on weekends","is_final":false}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseClientMessage(raw); err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
	}
}
