package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestErrorCreation(t *testing.T) {
	err := E(Op("import.domains"), KindSchema, "header mismatch")

	if err.Op != "import.domains" {
		t.Errorf("expected Op 'import.domains', got %q", err.Op)
	}
	if err.Kind != KindSchema {
		t.Errorf("expected Kind KindSchema, got %v", err.Kind)
	}
	if err.Msg != "header mismatch" {
		t.Errorf("expected Msg 'header mismatch', got %q", err.Msg)
	}
}

func TestErrorWithWrappedError(t *testing.T) {
	underlying := fmt.Errorf("UNIQUE constraint failed: genes.name")
	err := E(Op("database.insert"), KindIntegrity, underlying, "failed to insert gene")

	if err.Err != underlying {
		t.Error("expected underlying error to be set")
	}

	errStr := err.Error()
	for _, want := range []string{"database.insert", "failed to insert gene", "UNIQUE constraint"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error string should contain %q, got %q", want, errStr)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	underlying := fmt.Errorf("root cause")
	err := E(Op("test"), underlying)

	if err.Unwrap() != underlying {
		t.Error("Unwrap should return the underlying error")
	}
	if !Is(err, underlying) {
		t.Error("Is should find the underlying error")
	}
}

func TestErrorStringFormats(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{"op only", &Error{Op: "test"}, "test: "},
		{"msg only", &Error{Msg: "failed"}, "failed"},
		{"err only", &Error{Err: fmt.Errorf("root")}, "root"},
		{"op and msg", &Error{Op: "test", Msg: "failed"}, "test: failed"},
		{"all fields", &Error{Op: "test", Msg: "failed", Err: fmt.Errorf("root")}, "test: failed: root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindUnknown, "unknown"},
		{KindDatabase, "database"},
		{KindIO, "io"},
		{KindConfig, "config"},
		{KindParse, "parse"},
		{KindValidation, "validation"},
		{KindSchema, "schema"},
		{KindMalformed, "malformed"},
		{KindReference, "reference"},
		{KindAmbiguous, "ambiguous"},
		{KindIntegrity, "integrity"},
		{KindNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.expected {
				t.Errorf("Kind.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKindFatal(t *testing.T) {
	for _, k := range []Kind{KindMalformed, KindReference, KindAmbiguous} {
		if k.Fatal() {
			t.Errorf("%s should not be fatal", k)
		}
	}
	for _, k := range []Kind{KindSchema, KindIntegrity, KindDatabase, KindIO} {
		if !k.Fatal() {
			t.Errorf("%s should be fatal", k)
		}
	}
}

func TestWrap(t *testing.T) {
	if Wrap("test", nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	underlying := E(KindSchema, "bad header")
	wrapped := Wrap("import.sites", underlying)

	appErr, ok := wrapped.(*Error)
	if !ok {
		t.Fatal("Wrap should return *Error")
	}
	if appErr.Op != "import.sites" {
		t.Errorf("expected Op 'import.sites', got %q", appErr.Op)
	}
	if appErr.Kind != KindSchema {
		t.Errorf("Wrap should keep the kind of the wrapped error, got %v", appErr.Kind)
	}
}

func TestWrapMsg(t *testing.T) {
	if WrapMsg("test", "msg", nil) != nil {
		t.Error("WrapMsg(nil) should return nil")
	}

	wrapped := WrapMsg("db.query", "query failed", fmt.Errorf("test error"))
	if !strings.Contains(wrapped.Error(), "query failed") {
		t.Errorf("error should contain message, got %q", wrapped.Error())
	}
}

func TestGetKindThroughChain(t *testing.T) {
	inner := E(KindIntegrity, "duplicate")
	outer := fmt.Errorf("commit: %w", inner)

	if got := GetKind(outer); got != KindIntegrity {
		t.Errorf("GetKind() = %v, want integrity", got)
	}
	if !IsKind(outer, KindIntegrity) {
		t.Error("IsKind should see through fmt wrapping")
	}
	if IsKind(fmt.Errorf("standard error"), KindDatabase) {
		t.Error("expected IsKind to return false for non-Error type")
	}
}

func TestSkipCounter(t *testing.T) {
	sc := NewSkipCounter("domains", KindReference)

	sc.Skip(fmt.Errorf("error 1"), "item1")
	sc.Skip(fmt.Errorf("error 2"), "item2")
	sc.Skip(fmt.Errorf("error 3"), "item3")

	if sc.Count != 3 {
		t.Errorf("expected count 3, got %d", sc.Count)
	}
	if sc.LastErr == nil || sc.LastErr.Error() != "error 3" {
		t.Errorf("LastErr should be last error, got %v", sc.LastErr)
	}
	if sc.LastDetail != "item3" {
		t.Errorf("LastDetail should be 'item3', got %q", sc.LastDetail)
	}

	// Report should not panic
	sc.Report()
}

func TestIgnoreError(t *testing.T) {
	IgnoreError(nil, "test")
	IgnoreError(fmt.Errorf("test"), "test reason")
}
