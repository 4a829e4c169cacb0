package token

import (
	"errors"
	"strings"
	"testing"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "UUID", raw: "6F9619FF-8B86-D011-B42D-00C04FC964FF", want: "6f9619ff-8b86-d011-b42d-00c04fc964ff"},
		{name: "UUIDBraces", raw: "{6f9619ff-8b86-d011-b42d-00c04fc964ff}", want: "6f9619ff-8b86-d011-b42d-00c04fc964ff"},
		{name: "Opaque", raw: "device_ABC.123", want: "device_ABC.123"},
		{name: "Trimmed", raw: "  device_ABC.123 ", want: "device_ABC.123"},
		{name: "Empty", raw: "", wantErr: ErrMissing},
		{name: "Blank", raw: "   ", wantErr: ErrMissing},
		{name: "TooShort", raw: "abc", wantErr: ErrMalformed},
		{name: "TooLong", raw: strings.Repeat("a", 129), wantErr: ErrMalformed},
		{name: "BadChars", raw: "hello world!", wantErr: ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Got error %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasher_Key(t *testing.T) {
	h, err := NewHasher("pepper")
	if err != nil {
		t.Fatal(err)
	}
	a, err := h.Key("6F9619FF-8B86-D011-B42D-00C04FC964FF")
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Key("6f9619ff-8b86-d011-b42d-00c04fc964ff")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("Spellings of the same UUID map to different keys: %q != %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Got key length %d, want 64", len(a))
	}
	if strings.Contains(string(a), "6f9619ff") {
		t.Errorf("Key %q leaks the token", a)
	}

	other, _ := NewHasher("another pepper")
	c, err := other.Key("6f9619ff-8b86-d011-b42d-00c04fc964ff")
	if err != nil {
		t.Fatal(err)
	}
	if c == a {
		t.Error("Different peppers produced the same key")
	}

	if _, err := h.Key("bad"); !errors.Is(err, ErrMalformed) {
		t.Errorf("Got %v, want ErrMalformed", err)
	}
}

func TestNewHasher_LongPepper(t *testing.T) {
	if _, err := NewHasher(strings.Repeat("p", 65)); err == nil {
		t.Error("Expected error for 65-byte pepper")
	}
}
