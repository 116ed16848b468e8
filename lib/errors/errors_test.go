package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDerivedErrorsKeepTheirCategory(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		wraps error
		code  Code
	}{
		{"ErrNoFactory", ErrNoFactory, ErrInvalidInput, CodeInvalidInput},
		{"ErrInvalidCapacity", ErrInvalidCapacity, ErrConfiguration, CodeConfiguration},
		{"ErrUnknownDriver", ErrUnknownDriver, ErrConfiguration, CodeConfiguration},
		{"ErrMissingHost", ErrMissingHost, ErrConfiguration, CodeConfiguration},
		{"ErrMissingDatabase", ErrMissingDatabase, ErrConfiguration, CodeConfiguration},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.wraps) {
				t.Errorf("%s should wrap %v", tc.name, tc.wraps)
			}
			if got := CodeOf(tc.err); got != tc.code {
				t.Errorf("CodeOf(%s) = %v, want %v", tc.name, got, tc.code)
			}
		})
	}
}

func TestCodeString(t *testing.T) {
	seen := make(map[string]Code)
	for _, cl := range classes {
		name := cl.code.String()
		if prev, dup := seen[name]; dup {
			t.Errorf("codes %d and %d share the name %q", prev, cl.code, name)
		}
		seen[name] = cl.code
		if cl.code.Sentinel() != cl.sentinel {
			t.Errorf("%v.Sentinel() does not match its class", cl.code)
		}
	}

	if got := Code(4242).String(); got != "code(4242)" {
		t.Errorf("unknown code String() = %q", got)
	}
	if Code(4242).Sentinel() != nil {
		t.Error("unknown code should have no sentinel")
	}
}

func TestFactoryError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := FactoryError(cause)

	if !errors.Is(err, ErrFactory) || !errors.Is(err, cause) {
		t.Error("factory error should match ErrFactory and its cause")
	}
	if got, want := err.Error(), "pool: factory: dial tcp: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if FactoryError(nil) != nil {
		t.Error("FactoryError(nil) should return nil")
	}
}

type dialError struct{ addr string }

func (e *dialError) Error() string { return "unreachable " + e.addr }

func TestFactoryErrorReachesCauseType(t *testing.T) {
	err := FactoryError(fmt.Errorf("connect: %w", &dialError{addr: "db:3306"}))

	var de *dialError
	if !errors.As(err, &de) {
		t.Fatal("errors.As should reach the cause type")
	}
	if de.addr != "db:3306" {
		t.Errorf("addr = %q", de.addr)
	}
}

func TestStructuredError(t *testing.T) {
	cause := errors.New("root:hunter2@tcp(db.internal:3306)/orders: access denied")

	tests := []struct {
		name    string
		err     *Error
		message string
		text    string
	}{
		{"New", New(CodeInvalidInput, "capacity is required"), "capacity is required", "capacity is required"},
		{"Wrap", Wrap(CodeConnection, "mysql connect failed", cause), "mysql connect failed", "mysql connect failed: " + cause.Error()},
		{"WrapNil", Wrap(CodeInternal, "flush", nil), "flush", "flush"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Message != tc.message {
				t.Errorf("Message = %q, want %q", tc.err.Message, tc.message)
			}
			if strings.Contains(tc.err.Message, "hunter2") {
				t.Error("Message must not carry the cause")
			}
			if got := tc.err.Error(); got != tc.text {
				t.Errorf("Error() = %q, want %q", got, tc.text)
			}
		})
	}

	if errors.Unwrap(tests[1].err) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestStructuredErrorMatchesSentinel(t *testing.T) {
	tests := []struct {
		err    error
		target error
		expect bool
	}{
		{New(CodeConfiguration, "bad port"), ErrConfiguration, true},
		{Wrap(CodeConnection, "refused", errors.New("dial")), ErrConnection, true},
		{fmt.Errorf("open: %w", New(CodeTimeout, "slow")), ErrTimeout, true},
		{Wrap(CodeConfiguration, "parse", ErrInvalidCapacity), ErrInvalidCapacity, true},
		{New(CodeConnection, "refused"), ErrConfiguration, false},
		{New(9999, "unknown code"), ErrInternal, false},
	}

	for _, tt := range tests {
		if got := errors.Is(tt.err, tt.target); got != tt.expect {
			t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.expect)
		}
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{ErrTimeout, CodeTimeout},
		{fmt.Errorf("acquire: %w", ErrTimeout), CodeTimeout},
		{ErrUnknownResource, CodeUnknownResource},
		{ErrClosed, CodeClosed},
		{FactoryError(errors.New("boom")), CodeFactory},
		{FactoryError(ErrCircuitOpen), CodeCircuitOpen},
		{FactoryError(New(CodeConnection, "refused")), CodeConnection},
		{ErrConnection, CodeConnection},
		{fmt.Errorf("outer: %w", New(CodeConnection, "refused")), CodeConnection},
		{ErrInternal, CodeInternal},
		{errors.New("some unknown error"), CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Errorf("CodeOf = %v, want %v", got, tc.want)
			}
			e := FromSentinel(tc.err)
			if e.Code != tc.want || !errors.Is(e, tc.err) {
				t.Errorf("FromSentinel = %+v, want code %v wrapping the input", e, tc.want)
			}
		})
	}

	if FromSentinel(nil) != nil {
		t.Error("FromSentinel(nil) should return nil")
	}
}

func TestIsHelpers(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(error) bool
		err    error
		expect bool
	}{
		{"IsTimeout", IsTimeout, fmt.Errorf("acquire: %w", ErrTimeout), true},
		{"IsTimeout", IsTimeout, ErrClosed, false},
		{"IsUnknownResource", IsUnknownResource, ErrUnknownResource, true},
		{"IsUnknownResource", IsUnknownResource, ErrTimeout, false},
		{"IsClosed", IsClosed, ErrClosed, true},
		{"IsClosed", IsClosed, ErrFactory, false},
		{"IsFactory", IsFactory, FactoryError(errors.New("x")), true},
		{"IsFactory", IsFactory, ErrTimeout, false},
		{"IsCircuitOpen", IsCircuitOpen, FactoryError(ErrCircuitOpen), true},
		{"IsCircuitOpen", IsCircuitOpen, FactoryError(errors.New("x")), false},
		{"IsInvalidInput", IsInvalidInput, ErrNoFactory, true},
		{"IsInvalidInput", IsInvalidInput, ErrUnknownDriver, false},
		{"IsConfiguration", IsConfiguration, Wrap(CodeConfiguration, "invalid RESPOOL_POOL_CAPACITY", errors.New("strconv")), true},
		{"IsConfiguration", IsConfiguration, ErrConnection, false},
		{"IsRetriable", IsRetriable, ErrTimeout, true},
		{"IsRetriable", IsRetriable, ErrUnknownResource, false},
		{"IsRetriable", IsRetriable, ErrClosed, false},
		{"IsRetriable", IsRetriable, FactoryError(ErrCircuitOpen), false},
	}

	for _, tc := range tests {
		if got := tc.fn(tc.err); got != tc.expect {
			t.Errorf("%s(%v) = %v, want %v", tc.name, tc.err, got, tc.expect)
		}
	}
}

func TestStdlibReexports(t *testing.T) {
	first, second := errors.New("first"), errors.New("second")

	joined := Join(first, nil, second)
	if !Is(joined, first) || !Is(joined, second) {
		t.Error("joined error should contain both errors")
	}
	if Join(nil, nil) != nil {
		t.Error("Join of nils should be nil")
	}

	var target *Error
	if !As(fmt.Errorf("ctx: %w", Wrap(CodeTimeout, "wrapped", ErrTimeout)), &target) {
		t.Fatal("As should find the *Error")
	}
	if target.Code != CodeTimeout {
		t.Errorf("Code = %v, want %v", target.Code, CodeTimeout)
	}
}
