package failure

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind error
	}{
		{"configuration", Configuration("load", io.EOF), ErrConfiguration},
		{"training data", TrainingData("fit", errors.New("one class")), ErrTrainingData},
		{"malformed input", MalformedInput("decode", nil), ErrMalformedInput},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			if !errors.Is(wrapped, tc.kind) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tc.kind)
			}
			if got := Kind(wrapped); got != tc.kind {
				t.Errorf("Kind() = %v, want %v", got, tc.kind)
			}
		})
	}
}

func TestCauseIsPreserved(t *testing.T) {
	err := Configuration("load model", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause should remain reachable through errors.Is")
	}
	if errors.Is(err, ErrTrainingData) {
		t.Error("configuration failure must not match training data kind")
	}

	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatal("errors.As should find *Error")
	}
	if fe.Op != "load model" {
		t.Errorf("Op = %q, want %q", fe.Op, "load model")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if got := Kind(errors.New("boom")); got != nil {
		t.Errorf("Kind() = %v, want nil", got)
	}
}

func TestErrorMessage(t *testing.T) {
	got := MalformedInput("decode record", errors.New("missing field annual_income")).Error()
	want := "decode record: malformed input: missing field annual_income"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	got = Configuration("predict", nil).Error()
	want = "predict: configuration error"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
