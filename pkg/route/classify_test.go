package route

import (
	"testing"

	"github.com/unicens-project/ucs-go/pkg/endpoint"
	"github.com/unicens-project/ucs-go/pkg/inic"
	"github.com/unicens-project/ucs-go/pkg/message"
)

func TestClassifyTransmissionAxis(t *testing.T) {
	tests := []struct {
		status message.TxStatus
		want   endpoint.Severity
	}{
		{message.TxStatusTimeout, endpoint.SeverityUncritical},
		{message.TxStatusCrc, endpoint.SeverityUncritical},
		{message.TxStatusConfigNoRcvr, endpoint.SeverityCritical},
		{message.TxStatusFatalOA, endpoint.SeverityCritical},
	}
	for _, tt := range tests {
		if got := classifyTransmission(tt.status); got != tt.want {
			t.Errorf("classifyTransmission(%v) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestClassifyTargetAxis(t *testing.T) {
	tests := []struct {
		target inic.TargetError
		want   endpoint.Severity
	}{
		{inic.TargetErrorBusy, endpoint.SeverityUncritical},
		{inic.TargetErrorTimeout, endpoint.SeverityUncritical},
		{inic.TargetErrorProcessing, endpoint.SeverityUncritical},
		{inic.TargetErrorConfiguration, endpoint.SeverityConfiguration},
		{inic.TargetErrorMostStandard, endpoint.SeverityCritical},
		{inic.TargetErrorSystem, endpoint.SeverityCritical},
		{inic.TargetErrorNone, endpoint.SeverityNone},
	}
	for _, tt := range tests {
		if got := classifyTarget(tt.target); got != tt.want {
			t.Errorf("classifyTarget(%v) = %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestClassifyInternalAxis(t *testing.T) {
	tests := []struct {
		internal inic.InternalError
		want     endpoint.Severity
	}{
		{inic.InternalErrorBufferOverflow, endpoint.SeverityUncritical},
		{inic.InternalErrorApiLocked, endpoint.SeverityUncritical},
		{inic.InternalErrorInvalidShadow, endpoint.SeverityUncritical},
		{inic.InternalErrorNotAvailable, endpoint.SeverityCritical},
		{inic.InternalErrorNotSupported, endpoint.SeverityCritical},
		{inic.InternalErrorParam, endpoint.SeverityCritical},
		{inic.InternalErrorNotInitialized, endpoint.SeverityCritical},
		{inic.InternalErrorNone, endpoint.SeverityNone},
	}
	for _, tt := range tests {
		if got := classifyInternal(tt.internal); got != tt.want {
			t.Errorf("classifyInternal(%v) = %v, want %v", tt.internal, got, tt.want)
		}
	}
}

func TestClassifyAxisAppliesTheRightTable(t *testing.T) {
	tests := []struct {
		name string
		res  endpoint.Result
		want endpoint.Severity
	}{
		{
			name: "transmission",
			res:  endpoint.Result{Axis: endpoint.AxisTransmission, Code: int(message.TxStatusTimeout)},
			want: endpoint.SeverityUncritical,
		},
		{
			name: "target",
			res:  endpoint.Result{Axis: endpoint.AxisTarget, Code: int(inic.ResultErrBusy)},
			want: endpoint.SeverityUncritical,
		},
		{
			name: "internal",
			res:  endpoint.Result{Axis: endpoint.AxisInternal, Code: int(inic.ErrNotAvailable)},
			want: endpoint.SeverityCritical,
		},
		{
			name: "unaxised result trusts the caller's Severity",
			res:  endpoint.Result{Axis: endpoint.AxisNone, Severity: endpoint.SeverityCritical},
			want: endpoint.SeverityCritical,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyAxis(tt.res); got != tt.want {
				t.Errorf("classifyAxis() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestManagerClassifyTracksRetryCounter(t *testing.T) {
	h := newHarness(t)
	r := &Route{}

	uncritical := endpoint.Result{Axis: endpoint.AxisTransmission, Code: int(message.TxStatusTimeout)}
	for i := 1; i <= 3; i++ {
		if got := h.mgr.classify(r, uncritical); got != endpoint.SeverityUncritical {
			t.Fatalf("classify() call %d = %v, want SeverityUncritical", i, got)
		}
		if r.RetryCounter != uint32(i) {
			t.Fatalf("RetryCounter after call %d = %d, want %d", i, r.RetryCounter, i)
		}
	}

	critical := endpoint.Result{Axis: endpoint.AxisTransmission, Code: int(message.TxStatusFatalOA)}
	if got := h.mgr.classify(r, critical); got != endpoint.SeverityCritical {
		t.Fatalf("classify() of a fatal Tx status = %v, want SeverityCritical", got)
	}
	if r.RetryCounter != 0 {
		t.Errorf("RetryCounter after a Critical classification = %d, want 0", r.RetryCounter)
	}

	for i := 0; i < maxRetryBudget; i++ {
		h.mgr.classify(r, uncritical)
	}
	if r.RetryCounter != maxRetryBudget {
		t.Fatalf("RetryCounter after %d uncritical failures = %d, want %d", maxRetryBudget, r.RetryCounter, maxRetryBudget)
	}
	if got := h.mgr.classify(r, uncritical); got != endpoint.SeverityCritical {
		t.Errorf("classify() on the failure past the retry budget = %v, want SeverityCritical (promoted)", got)
	}
	if r.RetryCounter != 0 {
		t.Errorf("RetryCounter after the budget-promoted Critical = %d, want 0 (reset)", r.RetryCounter)
	}

	if got := h.mgr.classify(r, endpoint.Result{Success: true}); got != endpoint.SeverityNone {
		t.Errorf("classify() of a success = %v, want SeverityNone", got)
	}
}
