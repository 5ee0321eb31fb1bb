package generator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/azatarm-prog/telegive-participant/internal/utils/random"
)

// Generator produces human-solvable arithmetic challenges. It is pure:
// the only state is the configured operand range, and every call draws
// fresh operands from crypto/rand, so it is safe for concurrent use.
type Generator struct {
	minNumber int
	maxNumber int
}

func New(minNumber, maxNumber int) *Generator {
	if minNumber < 0 {
		minNumber = 0
	}
	if maxNumber <= minNumber {
		maxNumber = minNumber + 9
	}
	return &Generator{minNumber: minNumber, maxNumber: maxNumber}
}

// Generate returns a question and its exact integer answer. Addition is
// weighted heavier than subtraction and multiplication, matching what
// most users can answer quickly on a phone keyboard.
func (g *Generator) Generate() (string, int, error) {
	roll, err := random.Int(0, 9)
	if err != nil {
		return "", 0, err
	}

	switch {
	case roll < 5:
		return g.addition()
	case roll < 8:
		return g.subtraction()
	default:
		return g.multiplication()
	}
}

func (g *Generator) addition() (string, int, error) {
	a, err := random.Int(g.minNumber, g.maxNumber)
	if err != nil {
		return "", 0, err
	}
	b, err := random.Int(g.minNumber, g.maxNumber)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("What is %d + %d?", a, b), a + b, nil
}

// subtraction always yields a non-negative result.
func (g *Generator) subtraction() (string, int, error) {
	a, err := random.Int(g.minNumber+2, g.maxNumber)
	if err != nil {
		return "", 0, err
	}
	b, err := random.Int(g.minNumber, a-1)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("What is %d - %d?", a, b), a - b, nil
}

// multiplication keeps operands small so answers stay mental-math sized.
func (g *Generator) multiplication() (string, int, error) {
	maxMult := g.maxNumber
	if maxMult > 5 {
		maxMult = 5
	}
	a, err := random.Int(1, maxMult)
	if err != nil {
		return "", 0, err
	}
	b, err := random.Int(1, maxMult)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("What is %d × %d?", a, b), a * b, nil
}

// ParseAnswer normalizes a raw user answer. Whitespace is tolerated;
// ok is false when the input is not an integer at all.
func ParseAnswer(raw string) (int, bool) {
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return parsed, true
}
