// Package validation provides centralized input validation for numass
// storage names.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xtxerr/numass/internal/errors"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for names.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// DefaultNameRules returns the default rules for shelf names.
func DefaultNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    255,
		AllowDots:    false,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// RunNameRules returns rules for pushed run names, which may carry dots
// as in "set_1.2".
func RunNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    200,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules. Errors wrap
// errors.ErrInvalidName.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return invalid(name, fmt.Sprintf("minimum %d characters required", rules.MinLength))
	}
	if len(name) > rules.MaxLength {
		return invalid(name, fmt.Sprintf("maximum %d characters allowed", rules.MaxLength))
	}

	if name == "." || name == ".." {
		return invalid(name, "cannot be '.' or '..'")
	}

	if strings.HasPrefix(name, ".") {
		return invalid(name, "cannot start with '.'")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return invalid(name, fmt.Sprintf("control character at position %d", i))
		}
		if r == '/' || r == '\\' {
			return invalid(name, fmt.Sprintf("path separator at position %d", i))
		}
		if !isAllowedNameChar(r, rules) {
			return invalid(name, fmt.Sprintf("invalid character '%c' at position %d", r, i))
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

func invalid(name, reason string) error {
	return fmt.Errorf("%q: %s: %w", name, reason, errors.ErrInvalidName)
}

// =============================================================================
// Run Name Validation
// =============================================================================

// ValidateRunName validates the name of a run pushed as "<name>.<ext>".
// A name that already ends in the archive extension is rejected so the
// file is not named "x.nm.zip.nm.zip".
func ValidateRunName(name, archiveExt string) error {
	if err := ValidateName(name, RunNameRules()); err != nil {
		return err
	}
	if archiveExt != "" && strings.HasSuffix(name, "."+archiveExt) {
		return invalid(name, "already carries the archive extension")
	}
	return nil
}
