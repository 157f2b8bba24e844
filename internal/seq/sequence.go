package seq

import (
	"errors"
	"fmt"
	"strings"
)

// Alphabet lists the 20 canonical residue symbols in a fixed order.
const Alphabet = "ACDEFGHIKLMNPQRSTVWY"

// MinLength rejects degenerate inputs before any evaluation is attempted.
const MinLength = 2

var ErrInvalidSequence = errors.New("invalid sequence")

// Validate checks that a sequence is non-degenerate and stays within the
// canonical residue alphabet.
func Validate(sequence string) error {
	if sequence == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSequence)
	}
	if len(sequence) < MinLength {
		return fmt.Errorf("%w: length %d is below minimum %d", ErrInvalidSequence, len(sequence), MinLength)
	}
	for i, r := range sequence {
		if !strings.ContainsRune(Alphabet, r) {
			return fmt.Errorf("%w: residue %q at position %d", ErrInvalidSequence, r, i)
		}
	}
	return nil
}
