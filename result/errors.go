package result

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
)

// ClassifyError maps a transport-level error and HTTP status code to
// an ErrorKind for statistics and the exit-status cell. statusCode is
// 0 when no response was ever received.
func ClassifyError(err error, statusCode int) ErrorKind {
	if statusCode >= 400 && statusCode <= 499 {
		return KindRemote
	}
	if statusCode >= 500 {
		return KindRemote
	}
	if err == nil {
		return KindNone
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return KindTLS
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return KindTLS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetwork
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetwork
	}

	if errors.Is(err, context.Canceled) {
		return KindSignal
	}

	return KindProtocol
}
