package models

import "testing"

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"signal_update","data":{"id":5,"symbol":"BTCUSDT","direction":"short"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != TypeSignalUpdate {
		t.Fatalf("type %q", env.Type)
	}
	s, err := env.Signal()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if s.ID != 5 || s.Direction != DirectionShort {
		t.Fatalf("signal %+v", s)
	}
}

func TestDecodeEnvelopeRejectsMissingType(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{"data":{"id":1}}`)); err == nil {
		t.Fatal("expected error for missing type tag")
	}
}

func TestDecodeEnvelopeRejectsBadJSON(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{`)); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}

func TestErrorFrameCarriesMessage(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"error","message":"unknown channel"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Type != TypeError || env.Message != "unknown channel" {
		t.Fatalf("envelope %+v", env)
	}
}
