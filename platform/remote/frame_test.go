package remote

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewRequestFrame(t *testing.T) {
	t.Parallel()

	data := SubmitRequest{Kind: "batch", Job: "send-invoices", Attempt: 1}
	frame, err := NewRequestFrame("frame-1", MethodSubmit, data)
	if err != nil {
		t.Fatalf("NewRequestFrame: %v", err)
	}

	if frame.ID != "frame-1" {
		t.Errorf("ID = %q, want %q", frame.ID, "frame-1")
	}
	if frame.Type != FrameRequest {
		t.Errorf("Type = %q, want %q", frame.Type, FrameRequest)
	}
	if frame.Method != MethodSubmit {
		t.Errorf("Method = %q, want %q", frame.Method, MethodSubmit)
	}
	if frame.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}

	var payload SubmitRequest
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.Job != "send-invoices" {
		t.Errorf("payload job = %q, want %q", payload.Job, "send-invoices")
	}
}

func TestNewErrorFrame(t *testing.T) {
	t.Parallel()

	frame := NewErrorFrame("correl-2", ErrCodeBusy, "executor at capacity")
	if frame.Type != FrameErr {
		t.Errorf("Type = %q, want %q", frame.Type, FrameErr)
	}
	if frame.CorrelID != "correl-2" {
		t.Errorf("CorrelID = %q, want %q", frame.CorrelID, "correl-2")
	}
	if frame.Error == nil {
		t.Fatal("Error should not be nil")
	}
	if frame.Error.Code != ErrCodeBusy {
		t.Errorf("Error.Code = %d, want %d", frame.Error.Code, ErrCodeBusy)
	}
}

func TestNewEventFrame(t *testing.T) {
	t.Parallel()

	frame, err := NewEventFrame(EventOutcome, OutcomeEvent{TrackingID: "trk_x", Outcome: "success"})
	if err != nil {
		t.Fatalf("NewEventFrame: %v", err)
	}
	if frame.Type != FrameEvent {
		t.Errorf("Type = %q, want %q", frame.Type, FrameEvent)
	}
	if frame.Event != EventOutcome {
		t.Errorf("Event = %q, want %q", frame.Event, EventOutcome)
	}
}

func TestGenerateFrameID(t *testing.T) {
	t.Parallel()

	id1 := GenerateFrameID()
	if id1 == "" {
		t.Error("GenerateFrameID returned empty string")
	}

	// Should produce unique IDs.
	time.Sleep(time.Millisecond)
	id2 := GenerateFrameID()
	if id1 == id2 {
		t.Error("two calls to GenerateFrameID should produce different IDs")
	}
}

func TestGetCodec(t *testing.T) {
	t.Parallel()

	if got := GetCodec("").Name(); got != CodecNameJSON {
		t.Errorf("GetCodec(\"\") = %q, want %q", got, CodecNameJSON)
	}
	if got := GetCodec("msgpack").Name(); got != CodecNameMsgpack {
		t.Errorf("GetCodec(msgpack) = %q, want %q", got, CodecNameMsgpack)
	}
	if got := GetCodec("protobuf").Name(); got != CodecNameJSON {
		t.Errorf("GetCodec(unknown) = %q, want %q", got, CodecNameJSON)
	}
}

func TestCodecRoundtrip(t *testing.T) {
	t.Parallel()

	codecs := []Codec{&JSONCodec{}, &MsgpackCodec{}}

	for _, codec := range codecs {
		t.Run(codec.Name(), func(t *testing.T) {
			original := &Frame{
				ID:       "err-1",
				Type:     FrameErr,
				CorrelID: "req-1",
				Token:    "secret",
				Data:     json.RawMessage(`{"result":"ok"}`),
				Error: &ErrorDetail{
					Code:    ErrCodeInternal,
					Message: "internal error",
					Details: "stack trace here",
				},
				Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			}

			data, err := codec.Encode(original)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := codec.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if decoded.ID != original.ID {
				t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
			}
			if decoded.Type != original.Type {
				t.Errorf("Type = %q, want %q", decoded.Type, original.Type)
			}
			if decoded.CorrelID != original.CorrelID {
				t.Errorf("CorrelID = %q, want %q", decoded.CorrelID, original.CorrelID)
			}
			if decoded.Error == nil || decoded.Error.Code != original.Error.Code {
				t.Errorf("Error = %+v, want code %d", decoded.Error, original.Error.Code)
			}
			if string(decoded.Data) != string(original.Data) {
				t.Errorf("Data = %s, want %s", decoded.Data, original.Data)
			}
		})
	}
}

func TestCodecDecodeInvalid(t *testing.T) {
	t.Parallel()

	if _, err := (&JSONCodec{}).Decode([]byte("{not json")); err == nil {
		t.Error("JSONCodec.Decode should reject malformed input")
	}
	if _, err := (&MsgpackCodec{}).Decode([]byte{0xc1}); err == nil {
		t.Error("MsgpackCodec.Decode should reject malformed input")
	}
}
