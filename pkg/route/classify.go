package route

import (
	"github.com/unicens-project/ucs-go/pkg/endpoint"
	"github.com/unicens-project/ucs-go/pkg/inic"
	"github.com/unicens-project/ucs-go/pkg/message"
)

// maxRetryBudget is the 0xFF consecutive-Uncritical-failure budget; the
// failure that pushes a route's retry counter past it is promoted to
// Critical regardless of what its own axis/code would otherwise classify
// to.
const maxRetryBudget = 0xFF

// classify derives res's Severity from its error axis and code and
// updates r's retry counter: incremented on Uncritical, reset to zero on
// success and on every Critical classification (including one promoted
// by the retry budget).
func (m *Manager) classify(r *Route, res endpoint.Result) endpoint.Severity {
	if res.Success {
		r.RetryCounter = 0
		return endpoint.SeverityNone
	}

	sev := classifyAxis(res)
	if sev == endpoint.SeverityUncritical {
		r.RetryCounter++
		if r.RetryCounter > maxRetryBudget {
			sev = endpoint.SeverityCritical
		}
	}
	if isCritical(sev) {
		r.RetryCounter = 0
	}
	return sev
}

// classifyAxis maps res's raw axis+code onto a Severity. AxisTransmission
// codes are message.TxStatus values; AxisTarget codes are
// inic.ResultCode values run through inic.ClassifyTarget; AxisInternal
// codes are inic.Return values run through inic.ClassifyInternal. A
// Result with AxisNone is assumed already classified by the caller (a
// synchronous Builder fake, typically) and its Severity is trusted as-is.
func classifyAxis(res endpoint.Result) endpoint.Severity {
	switch res.Axis {
	case endpoint.AxisTransmission:
		return classifyTransmission(message.TxStatus(res.Code))
	case endpoint.AxisTarget:
		return classifyTarget(inic.ClassifyTarget(inic.Result{Code: inic.ResultCode(res.Code)}))
	case endpoint.AxisInternal:
		return classifyInternal(inic.ClassifyInternal(inic.Return(res.Code)))
	default:
		return res.Severity
	}
}

func classifyTransmission(s message.TxStatus) endpoint.Severity {
	switch {
	case s.IsFatal():
		return endpoint.SeverityCritical
	case s.IsTransient():
		return endpoint.SeverityUncritical
	default:
		return endpoint.SeverityCritical
	}
}

func classifyTarget(t inic.TargetError) endpoint.Severity {
	switch t {
	case inic.TargetErrorBusy, inic.TargetErrorTimeout, inic.TargetErrorProcessing:
		return endpoint.SeverityUncritical
	case inic.TargetErrorConfiguration:
		return endpoint.SeverityConfiguration
	case inic.TargetErrorMostStandard, inic.TargetErrorSystem:
		return endpoint.SeverityCritical
	default:
		return endpoint.SeverityNone
	}
}

func classifyInternal(e inic.InternalError) endpoint.Severity {
	switch e {
	case inic.InternalErrorBufferOverflow, inic.InternalErrorApiLocked, inic.InternalErrorInvalidShadow:
		return endpoint.SeverityUncritical
	case inic.InternalErrorNotAvailable, inic.InternalErrorNotSupported, inic.InternalErrorParam, inic.InternalErrorNotInitialized:
		return endpoint.SeverityCritical
	default:
		return endpoint.SeverityNone
	}
}

// isCritical reports whether sev should drive a route to Suspended: a
// true Critical classification, or a Configuration error (always
// terminal, no retries).
func isCritical(sev endpoint.Severity) bool {
	return sev == endpoint.SeverityCritical || sev == endpoint.SeverityConfiguration
}
