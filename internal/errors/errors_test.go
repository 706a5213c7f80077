package errors

import (
	"io/fs"
	"testing"
)

func TestErrorToCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int32
	}{
		{"nil", nil, CodeUnknown},
		{"fragment", Wrapf(ErrFragmentNotFound, "p1 in run set_1"), CodeNotFound},
		{"missing key", NewMissingKey("start_time"), CodeConfiguration},
		{"io", WrapIO(fs.ErrPermission, "open", "/data/meta"), CodeIO},
		{"envelope", Wrap(ErrBadEnvelope, "p0"), CodeFormat},
		{"name", Wrap(ErrInvalidName, `"a/b"`), CodeInvalidInput},
		{"other", New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorToCode(tt.err); got != tt.want {
				t.Errorf("ErrorToCode(%v) = %s, want %s", tt.err, CodeName(got), CodeName(tt.want))
			}
		})
	}
}

func TestWrapIOKeepsCause(t *testing.T) {
	err := WrapIO(fs.ErrNotExist, "open", "/data/p1")
	if !IsIO(err) {
		t.Errorf("IsIO(%v) = false", err)
	}
	if !Is(err, fs.ErrNotExist) {
		t.Errorf("cause lost: %v", err)
	}

	again := WrapIO(err, "read", "/data/p1")
	if got, want := again.Error(), "read /data/p1: open /data/p1: io error: file does not exist"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors(t *testing.T) {
	v := NewValidationErrors()
	if v.Err() != nil {
		t.Fatal("empty collector should return nil")
	}
	v.AddMissing("root")
	v.AddField("scan.parallelism", "must be positive")
	v.Add(nil)

	err := v.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if len(v.Errors) != 2 {
		t.Errorf("len = %d, want 2", len(v.Errors))
	}
	if !Is(err, ErrMissingField) || !Is(err, ErrInvalidConfig) {
		t.Errorf("collected sentinels not reachable: %v", err)
	}
	if !IsValidation(err) {
		t.Error("IsValidation = false")
	}
}
