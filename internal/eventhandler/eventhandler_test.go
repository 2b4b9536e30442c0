package eventhandler

import (
	"testing"

	"github.com/unicens-project/ucs-go/internal/observer"
)

func TestReportEventNotifiesInternalObservers(t *testing.T) {
	h := New()
	var got []any
	h.AddInternalObserver(observer.ObserverFunc(func(data any) { got = append(got, data) }))

	h.ReportEvent(SyncLost)
	if len(got) != 1 || got[0] != SyncLost {
		t.Errorf("got = %v, want [SyncLost]", got)
	}
}

func TestReportEventPublicFailureCodes(t *testing.T) {
	tests := []struct {
		code      Code
		wantPub   bool
		wantClass PublicErrorCode
	}{
		{BistFailed, true, PublicErrorInic},
		{UnsyncComplete, true, PublicErrorCommunication},
		{UnsyncFailed, true, PublicErrorCommunication},
		{SyncLost, false, PublicErrorNone},
		{InitSucceeded, false, PublicErrorNone},
		{InitFailed, false, PublicErrorNone},
	}

	for _, tt := range tests {
		h := New()
		var got *PublicError
		h.SetPublicErrorObserver(observer.ObserverFunc(func(data any) {
			pe := data.(PublicError)
			got = &pe
		}))

		h.ReportEvent(tt.code)
		if tt.wantPub && got == nil {
			t.Errorf("code %v: expected a public error, got none", tt.code)
			continue
		}
		if !tt.wantPub && got != nil {
			t.Errorf("code %v: expected no public error, got %v", tt.code, got)
			continue
		}
		if tt.wantPub && got.Code != tt.wantClass {
			t.Errorf("code %v: public error class = %v, want %v", tt.code, got.Code, tt.wantClass)
		}
	}
}

func TestIsTermination(t *testing.T) {
	terminal := []Code{UnsyncComplete, UnsyncFailed, BistFailed, InitFailed}
	for _, c := range terminal {
		if !IsTermination(c) {
			t.Errorf("IsTermination(%v) = false, want true", c)
		}
	}
	nonTerminal := []Code{SyncLost, InitSucceeded}
	for _, c := range nonTerminal {
		if IsTermination(c) {
			t.Errorf("IsTermination(%v) = true, want false", c)
		}
	}
}

func TestRemoveInternalObserver(t *testing.T) {
	h := New()
	var calls int
	obs := observer.ObserverFunc(func(data any) { calls++ })
	h.AddInternalObserver(obs)
	h.RemoveInternalObserver(obs)

	h.ReportEvent(SyncLost)
	if calls != 0 {
		t.Errorf("calls = %d after RemoveInternalObserver, want 0", calls)
	}
}
