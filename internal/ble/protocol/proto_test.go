package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeAuthRequest(t *testing.T) {
	got := EncodeAuthRequest("secret123", "Phone")
	want := []byte("secret123|Phone")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeAuthRequest() = %q, want %q", got, want)
	}
}

func TestEncodeAuthRequestUTF8(t *testing.T) {
	got := EncodeAuthRequest("pässwörd", "Téléphone")
	want := []byte("p\xc3\xa4ssw\xc3\xb6rd|T\xc3\xa9l\xc3\xa9phone")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeAuthRequest() = %x, want %x", got, want)
	}
}

func TestDecodeAuthRequest(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantPass  string
		wantLabel string
		wantErr   bool
	}{
		{"simple", "secret123|Phone", "secret123", "Phone", false},
		{"password with separator", "a|b|Phone", "a|b", "Phone", false},
		{"empty label", "secret|", "secret", "", false},
		{"no separator", "secret", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass, label, err := DecodeAuthRequest([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeAuthRequest(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if pass != tt.wantPass || label != tt.wantLabel {
				t.Errorf("DecodeAuthRequest(%q) = (%q, %q), want (%q, %q)", tt.in, pass, label, tt.wantPass, tt.wantLabel)
			}
		})
	}
}

func TestParseAuthResponse(t *testing.T) {
	tests := []struct {
		in       []byte
		wantKind ResponseKind
		wantMsg  string
	}{
		{[]byte("SUCCESS|welcome"), ResponseSuccess, "welcome"},
		{[]byte("SUCCESS|"), ResponseSuccess, ""},
		{[]byte("FAILED|Invalid password"), ResponseFailed, "Invalid password"},
		{[]byte("FAILED|bad\x00\x00"), ResponseFailed, "bad"},
		{[]byte("success|lowercase"), ResponseUnknown, "success|lowercase"},
		{[]byte("SUCCESS"), ResponseUnknown, "SUCCESS"},
		{[]byte("connected"), ResponseUnknown, "connected"},
		{[]byte{0xff, 0xfe}, ResponseUnknown, ""},
		{nil, ResponseUnknown, ""},
	}
	for _, tt := range tests {
		got := ParseAuthResponse(tt.in)
		if got.Kind != tt.wantKind || got.Message != tt.wantMsg {
			t.Errorf("ParseAuthResponse(%q) = {%v %q}, want {%v %q}", tt.in, got.Kind, got.Message, tt.wantKind, tt.wantMsg)
		}
	}
}

func TestEncodeResponsesRoundTrip(t *testing.T) {
	if got := ParseAuthResponse(EncodeSuccess("hi there")); got.Kind != ResponseSuccess || got.Message != "hi there" {
		t.Errorf("success frame parsed as %+v", got)
	}
	if got := ParseAuthResponse(EncodeFailure("nope")); got.Kind != ResponseFailed || got.Message != "nope" {
		t.Errorf("failure frame parsed as %+v", got)
	}
}

func TestEncodeRSSI(t *testing.T) {
	tests := []struct {
		rssi int
		want string
	}{
		{-58, "rssi:-58"},
		{-100, "rssi:-100"},
		{0, "rssi:0"},
		{5, "rssi:5"},
	}
	for _, tt := range tests {
		if got := string(EncodeRSSI(tt.rssi)); got != tt.want {
			t.Errorf("EncodeRSSI(%d) = %q, want %q", tt.rssi, got, tt.want)
		}
	}
}

func TestParseRSSI(t *testing.T) {
	n, err := ParseRSSI("rssi:-72")
	if err != nil || n != -72 {
		t.Errorf("ParseRSSI(rssi:-72) = %d, %v", n, err)
	}
	if _, err := ParseRSSI("rssi:abc"); err == nil {
		t.Error("ParseRSSI(rssi:abc) should fail")
	}
	if _, err := ParseRSSI("toggle"); err == nil {
		t.Error("ParseRSSI(toggle) should fail")
	}
}
