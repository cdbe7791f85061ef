package summarizer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// Kind classifies a provider failure for the retry governor.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindTransient   Kind = "transient"
	KindInvalid     Kind = "invalid"
	KindPermanent   Kind = "permanent"
)

type Failure struct {
	Kind     Kind
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Provider, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsRetryable reports whether err is a rate-limited or transient failure.
func IsRetryable(err error) bool {
	var failure *Failure
	if !errors.As(err, &failure) {
		return false
	}
	return failure.Kind == KindRateLimited || failure.Kind == KindTransient
}

// KindOf returns the failure kind of err. Unclassified errors are permanent.
func KindOf(err error) Kind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return KindPermanent
}

func newFailure(provider string, kind Kind, err error) *Failure {
	return &Failure{Kind: kind, Provider: provider, Err: err}
}

func invalid(provider string, format string, args ...any) *Failure {
	return newFailure(provider, KindInvalid, fmt.Errorf(format, args...))
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout, code == http.StatusConflict, code >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// classifyCommon handles what every backend shares: the attempt deadline,
// caller cancellation and network errors. ok is false when the error needs
// backend-specific inspection.
func classifyCommon(ctx context.Context, err error) (kind Kind, ok bool) {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return KindPermanent, true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTransient, true
	}
	if isCertificateError(err) {
		return KindPermanent, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient, true
	}

	return "", false
}

// isCertificateError reports TLS verification failures, which reach callers
// wrapped in *url.Error and would otherwise look like network errors.
func isCertificateError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

var (
	rateLimitedMessage = regexp.MustCompile(`(status( code)?:? ?429\b)|\b429 too many requests|rate.?limit|resource.?exhausted|too many requests`)
	transientMessage   = regexp.MustCompile(`(status( code)?:? ?5\d\d\b)|\b5\d\d (internal server error|bad gateway|service unavailable|gateway timeout)|service unavailable|bad gateway|gateway timeout|connection refused|connection reset|i/o timeout`)
)

// classifyMessage is the last resort for SDKs that only expose error text.
func classifyMessage(err error) Kind {
	msg := strings.ToLower(err.Error())

	switch {
	case rateLimitedMessage.MatchString(msg):
		return KindRateLimited
	case transientMessage.MatchString(msg):
		return KindTransient
	default:
		return KindPermanent
	}
}
