package domain

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIBANGenerator_Generate(t *testing.T) {
	gen := IBANGenerator{}

	for i := 0; i < 200; i++ {
		iban, err := gen.Generate()
		require.NoError(t, err)

		require.NoError(t, ValidateIBAN(iban), "generated IBAN must be checksum-valid: %s", iban)

		raw := strings.ReplaceAll(iban, "-", "")
		assert.Len(t, raw, 18)
		assert.True(t, strings.HasPrefix(raw, "NL"))
		assert.Equal(t, "MERB", raw[4:8])
		assert.Equal(t, byte('0'), raw[8], "first payload digit is fixed to zero")
		assert.Equal(t, iban, strings.ToUpper(iban))
	}
}

func TestIBANGenerator_GenerateUnique(t *testing.T) {
	gen := IBANGenerator{}

	t.Run("skips existing identifiers", func(t *testing.T) {
		existing := make(map[string]bool)
		existsFn := func(ctx context.Context, iban string) (bool, error) {
			return existing[iban], nil
		}

		for i := 0; i < 50; i++ {
			iban, err := gen.GenerateUnique(context.Background(), existsFn)
			require.NoError(t, err)
			require.False(t, existing[iban], "GenerateUnique returned an identifier already in the store")
			existing[iban] = true
		}
	})

	t.Run("exhausts attempts when everything collides", func(t *testing.T) {
		calls := 0
		existsFn := func(ctx context.Context, iban string) (bool, error) {
			calls++
			return true, nil
		}

		_, err := gen.GenerateUnique(context.Background(), existsFn)
		require.ErrorIs(t, err, ErrIBANGeneration)
		assert.Equal(t, DefaultIBANMaxAttempts, calls)
	})

	t.Run("honours a custom attempt budget", func(t *testing.T) {
		gen := IBANGenerator{MaxAttempts: 3}
		calls := 0
		existsFn := func(ctx context.Context, iban string) (bool, error) {
			calls++
			return true, nil
		}

		_, err := gen.GenerateUnique(context.Background(), existsFn)
		require.ErrorIs(t, err, ErrIBANGeneration)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := gen.GenerateUnique(ctx, func(ctx context.Context, iban string) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestValidateIBAN(t *testing.T) {
	gen := IBANGenerator{}
	valid, err := gen.Generate()
	require.NoError(t, err)

	tests := []struct {
		name string
		iban string
		ok   bool
	}{
		{"generated", valid, true},
		{"generated without dashes", strings.ReplaceAll(valid, "-", ""), true},
		{"lowercase", strings.ToLower(valid), true},
		{"too short", "NL12-MERB-0000-01", false},
		{"wrong country", "DE" + valid[2:], false},
		{"wrong bank code", valid[:5] + "XXXX" + valid[9:], false},
		{"non numeric payload", "NL12-MERB-00AB-0000-00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIBAN(tt.iban)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrIBANNotValid)
			}
		})
	}
}

func TestValidateIBAN_ChecksumMismatch(t *testing.T) {
	gen := IBANGenerator{}
	valid, err := gen.Generate()
	require.NoError(t, err)

	// Flip the last payload digit; the embedded checksum no longer matches.
	last := valid[len(valid)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tampered := valid[:len(valid)-1] + string(flipped)

	assert.ErrorIs(t, ValidateIBAN(tampered), ErrIBANNotValid)
}
