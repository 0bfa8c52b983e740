package hygiene

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckWeakPassword(t *testing.T) {
	report := Check(context.Background(), "password", Options{MinZXCVBNScore: 3})
	assert.True(t, report.Weak)
	assert.False(t, report.BreachLookupFailed, "CheckBreach was not requested")
}

func TestCheckStrongPasswordNotFlaggedWeak(t *testing.T) {
	report := Check(context.Background(), "Tr0ub4dor&3-correct-horse-battery", Options{MinZXCVBNScore: 3})
	assert.False(t, report.Weak)
}

func TestCheckDoesNotQueryHIBPUnlessRequested(t *testing.T) {
	report := Check(context.Background(), "anything", DefaultOptions())
	assert.False(t, report.BreachFound)
	assert.False(t, report.BreachLookupFailed)
}

func TestInspectComposition(t *testing.T) {
	c := InspectComposition("abc123!")
	assert.False(t, c.HasUpper)
	assert.True(t, c.HasDigit)
	assert.True(t, c.HasSpecial)

	c2 := InspectComposition("ABCDEF")
	assert.True(t, c2.HasUpper)
	assert.False(t, c2.HasDigit)
	assert.False(t, c2.HasSpecial)
}
