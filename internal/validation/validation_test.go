package validation

import (
	"strings"
	"testing"

	"github.com/xtxerr/numass/internal/errors"
)

func TestValidateName(t *testing.T) {
	rules := DefaultNameRules()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "2017_05", false},
		{"with hyphen", "run-2", false},
		{"with underscore", "set_1", false},
		{"numbers", "123", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"hidden", ".hidden", true},
		{"slash", "a/b", true},
		{"backslash", "a\\b", true},
		{"control char", "a\x00b", true},
		{"with dot", "set.1", true},
		{"space", "set 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input, rules)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidName) {
				t.Errorf("ValidateName(%q) error %v does not wrap ErrInvalidName", tt.input, err)
			}
		})
	}
}

func TestValidateRunName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"set_1", false},
		{"set_1.2", false},
		{"Fill_3-calib", false},
		{"set_1.nm.zip", true},
		{"../escape", true},
		{strings.Repeat("a", 201), true},
	}

	for _, tt := range tests {
		err := ValidateRunName(tt.input, "nm.zip")
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRunName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}

	if err := ValidateRunName("set_1.nm.zip", ""); err != nil {
		t.Errorf("without an extension the name is plain: %v", err)
	}
}

func TestErrorMentionsName(t *testing.T) {
	err := ValidateName("a/b", DefaultNameRules())
	if err == nil || !strings.Contains(err.Error(), `"a/b"`) {
		t.Errorf("error = %v, want quoted name", err)
	}
}
