package netlink

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/tether-protocol/tether-go/pkg/link"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	enable := true
	in := &Envelope{
		Kind: KindRequest,
		ID:   42,
		Request: &Request{
			Op:     OpSetNotify,
			Handle: 0x2A01,
			Enable: &enable,
		},
	}

	data, err := EncodeEnvelope(in)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}

	out, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if out.Kind != KindRequest || out.ID != 42 {
		t.Errorf("envelope header = %s/%d, want REQUEST/42", out.Kind, out.ID)
	}
	if out.Request == nil || out.Request.Op != OpSetNotify || out.Request.Handle != 0x2A01 {
		t.Errorf("request body mismatch: %+v", out.Request)
	}
	if out.Request.Enable == nil || !*out.Request.Enable {
		t.Error("enable flag lost in transit")
	}
}

func TestEnvelopeDeterministicEncoding(t *testing.T) {
	env := &Envelope{
		Kind:  KindHello,
		Hello: &Hello{Version: ProtocolVersion, Peer: "bench-peer"},
	}

	a, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	b, err := EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same envelope produced different bytes")
	}
}

func TestEnvelopeValidate(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
	}{
		{"unknown kind", Envelope{Kind: 99}},
		{"hello without body", Envelope{Kind: KindHello}},
		{"request without ID", Envelope{Kind: KindRequest, Request: &Request{Op: OpRead}}},
		{"response without body", Envelope{Kind: KindResponse, ID: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.env.Validate(); !errors.Is(err, ErrInvalidEnvelope) {
				t.Errorf("Validate() = %v, want ErrInvalidEnvelope", err)
			}
		})
	}
}

func TestParamsConversion(t *testing.T) {
	in := link.Params{
		Interval: 30 * time.Millisecond,
		Latency:  4,
		Timeout:  2 * time.Second,
	}

	out := ParamsToWire(in).ToLink()
	if out != in {
		t.Errorf("params round trip = %+v, want %+v", out, in)
	}
}

func TestTopologyConversion(t *testing.T) {
	in := &link.Topology{
		Groups: []link.Group{
			{
				ID:    1,
				Label: "environment",
				Attributes: []link.Attribute{
					{Handle: 0x10, Flags: link.AttrRead | link.AttrNotify},
					{Handle: 0x11, Flags: link.AttrRead | link.AttrWrite},
				},
			},
		},
	}

	out := TopologyToWire(in).ToLink()
	if len(out.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(out.Groups))
	}
	g := out.Groups[0]
	if g.ID != 1 || g.Label != "environment" || len(g.Attributes) != 2 {
		t.Errorf("group mismatch: %+v", g)
	}
	if g.Attributes[0].Handle != 0x10 || g.Attributes[0].Flags != link.AttrRead|link.AttrNotify {
		t.Errorf("attribute mismatch: %+v", g.Attributes[0])
	}
}

func TestAuthenticateProof(t *testing.T) {
	psk := []byte("shared secret")
	nonce, err := newNonce()
	if err != nil {
		t.Fatalf("newNonce: %v", err)
	}

	proof, err := Authenticate(psk, nonce)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if len(proof) != ProofSize {
		t.Errorf("proof size = %d, want %d", len(proof), ProofSize)
	}

	if !VerifyProof(psk, nonce, proof) {
		t.Error("valid proof rejected")
	}
	if VerifyProof([]byte("wrong key"), nonce, proof) {
		t.Error("proof accepted under wrong key")
	}
	if VerifyProof(psk, nonce, proof[:ProofSize-1]) {
		t.Error("short proof accepted")
	}

	other, _ := newNonce()
	if VerifyProof(psk, other, proof) {
		t.Error("proof accepted under wrong nonce")
	}
}
