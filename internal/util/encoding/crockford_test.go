package encoding_test

import (
	"testing"

	. "github.com/mkrupp/mediakit/internal/util/encoding"
)

func TestEncodeCrockfordB32LC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{
			name:  "handles empty input",
			input: []byte{},
			want:  "",
		},
		{
			name:  "encodes single byte",
			input: []byte{0x00},
			want:  "00",
		},
		{
			name:  "encodes ascii text",
			input: []byte("hello"),
			want:  "d1jprv3f",
		},
		{
			name:  "encodes high bytes",
			input: []byte{0xFF, 0xFF},
			want:  "zzzg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := EncodeCrockfordB32LC(tt.input); got != tt.want {
				t.Errorf("EncodeCrockfordB32LC(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEncodeCrockfordB32LC_Deterministic(t *testing.T) {
	t.Parallel()

	input := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF}

	first := EncodeCrockfordB32LC(input)
	for range 10 {
		if got := EncodeCrockfordB32LC(input); got != first {
			t.Fatalf("encoding not deterministic: %q != %q", got, first)
		}
	}
}
