package ucs

import (
	"testing"

	"github.com/unicens-project/ucs-go/internal/timer"
	"github.com/unicens-project/ucs-go/pkg/endpoint"
	"github.com/unicens-project/ucs-go/pkg/inic"
	"github.com/unicens-project/ucs-go/pkg/message"
	"github.com/unicens-project/ucs-go/pkg/route"
	"github.com/unicens-project/ucs-go/pkg/transceiver"
)

type recordingObserver func(data any)

func (r recordingObserver) Notify(data any) { r(data) }

// fakeBuilder is an endpoint.Builder that completes every build/destroy
// synchronously and successfully, enough to drive a route to Built.
type fakeBuilder struct{}

func (f *fakeBuilder) BuildSource(ep *endpoint.Endpoint) {
	ep.Subject.Notify(endpoint.Result{Success: true, Op: endpoint.OpBuild})
}
func (f *fakeBuilder) BuildSink(ep *endpoint.Endpoint, connLabel uint16) {
	ep.Subject.Notify(endpoint.Result{Success: true, Op: endpoint.OpBuild})
}
func (f *fakeBuilder) Destroy(ep *endpoint.Endpoint) {
	ep.Subject.Notify(endpoint.Result{Success: true, Op: endpoint.OpDestroy})
}
func (f *fakeBuilder) ReleaseNode(nodeRef any) {}

func TestInitRequiresTickClock(t *testing.T) {
	r, err := New(Config{Transceiver: transceiver.NewFake(64), Builder: &fakeBuilder{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := r.Init(InitData{}); got != ErrParam {
		t.Errorf("Init() with no TickClock = %v, want ErrParam", got)
	}
}

func TestInitSendsNetworkStartupAndDeliversInitResult(t *testing.T) {
	tx := transceiver.NewFake(64)
	r, err := New(Config{Transceiver: tx, Builder: &fakeBuilder{}, DestinationAddr: 1, SourceAddr: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var now timer.Tick
	if got := r.Init(InitData{TickClock: func() timer.Tick { return now }}); got != Success {
		t.Fatalf("Init() = %v, want Success", got)
	}

	sent := tx.Sent()
	if len(sent) != 1 || sent[0].ID.FunctionID != message.FuncNetworkStartup {
		t.Fatalf("sent = %v, want exactly one FuncNetworkStartup telegram", sent)
	}

	var results []any
	if err := r.AddInitResultObserver(recordingObserver(func(data any) { results = append(results, data) })); err != nil {
		t.Fatalf("AddInitResultObserver() error = %v", err)
	}

	reply := &message.Telegram{ID: sent[0].ID, InfoPtr: sent[0].InfoPtr}
	reply.ID.OpType = message.OpTypeResult
	r.OnReceive(reply)

	if len(results) != 1 {
		t.Fatalf("results = %v, want 1", results)
	}
	res, ok := results[0].(inic.Result)
	if !ok || res.Code != inic.ResultSuccess {
		t.Errorf("delivered InitResult = %+v, want a successful inic.Result", results[0])
	}
}

func TestEndToEndRouteBuildsThroughTheFacade(t *testing.T) {
	tx := transceiver.NewFake(128)
	r, err := New(Config{Transceiver: tx, Builder: &fakeBuilder{}, DestinationAddr: 1, SourceAddr: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var now timer.Tick
	if got := r.Init(InitData{TickClock: func() timer.Tick { return now }}); got != Success {
		t.Fatalf("Init() = %v, want Success", got)
	}

	r.RegisterNode("nodeA")
	r.RegisterNode("nodeB")

	var src, sink endpoint.Endpoint
	src.Init(endpoint.TypeSource, "nodeA", nil)
	sink.Init(endpoint.TypeSink, "nodeB", nil)
	rt := &route.Route{Source: &src, Sink: &sink, ID: 1}

	if got := r.RouteStartProcess([]*route.Route{rt}); got != Success {
		t.Fatalf("RouteStartProcess() = %v, want Success", got)
	}
	if got := r.RouteActivate(rt); got != Success {
		t.Fatalf("RouteActivate() = %v, want Success", got)
	}

	for i := 0; i < 10; i++ {
		now += 10
		r.Service()
	}

	got := r.GetAttachedRoutes()
	if len(got) != 1 || got[0] != rt {
		t.Fatalf("GetAttachedRoutes() = %v, want [rt]", got)
	}
}

func TestSetNodeAvailableRejectsGoingAvailableBeforeRingIsUp(t *testing.T) {
	tx := transceiver.NewFake(64)
	r, err := New(Config{Transceiver: tx, Builder: &fakeBuilder{}, DestinationAddr: 1, SourceAddr: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	var now timer.Tick
	r.Init(InitData{TickClock: func() timer.Tick { return now }})
	r.RegisterNode("nodeA")

	if got := r.SetNodeAvailable("nodeA", true); got != ErrNotAvailable {
		t.Errorf("SetNodeAvailable(true) before the ring is reported Available = %v, want ErrNotAvailable", got)
	}
	if got := r.SetNodeAvailable("nodeA", false); got != Success {
		t.Errorf("SetNodeAvailable(false) = %v, want Success (no ring-up gate on going unavailable)", got)
	}
}
