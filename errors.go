package main

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/oracle/oci-go-sdk/v65/common"
)

// errorKind is the coarse failure taxonomy the walk reacts to. Only
// throttled and transient errors are retried; everything else is
// either recorded or fatal depending on where it happened.
type errorKind string

const (
	kindAccessDenied errorKind = "access_denied"
	kindNotFound     errorKind = "not_found"
	kindThrottled    errorKind = "throttled"
	kindTransient    errorKind = "transient"
	kindOther        errorKind = "other"
)

// classifyError maps an error from the OCI SDK (or the network below
// it) onto the walk's taxonomy. Service errors are classified by HTTP
// status; anything else falls back to transport heuristics.
func classifyError(err error) errorKind {
	if err == nil {
		return kindOther
	}

	if serviceErr, ok := common.IsServiceError(err); ok {
		switch serviceErr.GetHTTPStatusCode() {
		case 401, 403:
			return kindAccessDenied
		case 404:
			// OCI reports missing and unauthorized resources with the
			// same combined code.
			if serviceErr.GetCode() == "NotAuthorizedOrNotFound" {
				return kindAccessDenied
			}
			return kindNotFound
		case 429:
			return kindThrottled
		case 500, 502, 503, 504:
			return kindTransient
		default:
			return kindOther
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return kindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return kindTransient
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "too many requests"),
		strings.Contains(errStr, "rate limit"):
		return kindThrottled
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "temporary failure"),
		strings.Contains(errStr, "service unavailable"):
		return kindTransient
	case strings.Contains(errStr, "notauthorized"),
		strings.Contains(errStr, "forbidden"):
		return kindAccessDenied
	case strings.Contains(errStr, "notfound"),
		strings.Contains(errStr, "does not exist"):
		return kindNotFound
	}

	return kindOther
}

// isRetriable reports whether a failure of the given kind should be
// retried before being recorded.
func isRetriable(kind errorKind) bool {
	return kind == kindThrottled || kind == kindTransient
}

// newFailure builds the snapshot record for one non-fatal error.
func newFailure(scope, resourceID, operation string, err error) CollectionFailure {
	return CollectionFailure{
		Scope:      scope,
		ResourceID: resourceID,
		Operation:  operation,
		Kind:       string(classifyError(err)),
		Message:    err.Error(),
	}
}
