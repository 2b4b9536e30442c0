// ucs-host-sim is an example EHC host application driving the control-plane
// runtime against a simulated INIC peer over a loopback UDP socket.
//
// Usage:
//
//	ucs-host-sim [options]
//
// Options:
//
//	-listen   local UDP address to bind (default: 127.0.0.1:0)
//	-peer     peer UDP address to send telegrams to (required unless -loopback)
//	-loopback spin up both sides of the link in this process
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"

	"github.com/unicens-project/ucs-go/internal/timer"
	"github.com/unicens-project/ucs-go/pkg/endpoint"
	"github.com/unicens-project/ucs-go/pkg/message"
	"github.com/unicens-project/ucs-go/pkg/route"
	"github.com/unicens-project/ucs-go/pkg/transceiver"
	"github.com/unicens-project/ucs-go/pkg/ucs"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:0", "local UDP address to bind")
	peer := flag.String("peer", "", "peer UDP address")
	loopback := flag.Bool("loopback", true, "run both ends of the link in this process")
	flag.Parse()

	factory := logging.NewDefaultLoggerFactory()
	log := factory.NewLogger("ucs-host-sim")

	var link *transceiver.UDP
	if *loopback {
		a, b, err := transceiver.NewUDPLoopbackPair(factory)
		if err != nil {
			log.Errorf("loopback pair: %v", err)
			os.Exit(1)
		}
		go runSimulatedINIC(b, factory)
		link = a
	} else {
		if *peer == "" {
			log.Error("-peer is required without -loopback")
			os.Exit(1)
		}
		peerAddr, err := net.ResolveUDPAddr("udp", *peer)
		if err != nil {
			log.Errorf("resolve peer: %v", err)
			os.Exit(1)
		}
		link, err = transceiver.NewUDP(transceiver.UDPConfig{
			ListenAddr:    *listen,
			PeerAddr:      peerAddr,
			LoggerFactory: factory,
		})
		if err != nil {
			log.Errorf("new transceiver: %v", err)
			os.Exit(1)
		}
	}
	link.Start()
	defer link.Stop()

	runtime, err := ucs.New(ucs.Config{
		Transceiver:     link,
		Builder:         fakeBuilder{},
		DestinationAddr: 0x0100,
		SourceAddr:      0xFFFF,
		LoggerFactory:   factory,
	})
	if err != nil {
		log.Errorf("new runtime: %v", err)
		os.Exit(1)
	}
	link.SetReceiver(runtime)

	start := time.Now()
	tickClock := func() timer.Tick {
		return timer.Tick(time.Since(start).Milliseconds())
	}
	if ret := runtime.Init(ucs.InitData{TickClock: tickClock}); ret != ucs.Success {
		log.Errorf("init returned %v", ret)
		os.Exit(1)
	}

	nodeA := runtime.RegisterNode("node-a")
	nodeB := runtime.RegisterNode("node-b")

	var src, sink endpoint.Endpoint
	src.Init(endpoint.TypeSource, nodeA.ID, nil)
	sink.Init(endpoint.TypeSink, nodeB.ID, nil)
	r := &route.Route{Source: &src, Sink: &sink}
	runtime.RouteStartProcess([]*route.Route{r})
	runtime.RouteActivate(r)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			log.Info("shutting down")
			return
		case <-ticker.C:
			link.Drain()
			runtime.Service()
		}
	}
}

// fakeBuilder is a no-op XRM that "builds" every endpoint instantly,
// standing in for the real Extended Resource Manager this example never
// talks to.
type fakeBuilder struct{}

func (fakeBuilder) BuildSource(ep *endpoint.Endpoint) {
	ep.Subject.Notify(endpoint.Result{Success: true, Op: endpoint.OpBuild})
}

func (fakeBuilder) BuildSink(ep *endpoint.Endpoint, connLabel uint16) {
	ep.Subject.Notify(endpoint.Result{Success: true, Op: endpoint.OpBuild})
}

func (fakeBuilder) Destroy(ep *endpoint.Endpoint) {
	ep.Subject.Notify(endpoint.Result{Success: true, Op: endpoint.OpDestroy})
}

func (fakeBuilder) ReleaseNode(nodeRef any) {}

// runSimulatedINIC is a minimal peer that answers a NetworkStartup request
// with a synthesized success Result so the example has something to talk
// to. It is not a model of real INIC firmware.
func runSimulatedINIC(link *transceiver.UDP, factory logging.LoggerFactory) {
	link.Start()
	link.SetReceiver(startupReplier{link})
	for {
		time.Sleep(10 * time.Millisecond)
		link.Drain()
	}
}

// startupReplier answers any request with an immediate Result=NoError
// reply carrying the same FunctionId, letting the real dispatch/decode
// path on the host side exercise its success branch.
type startupReplier struct {
	link *transceiver.UDP
}

func (s startupReplier) OnReceive(req *message.Telegram) {
	reply, ok := s.link.AllocTx(1)
	if !ok {
		return
	}
	reply.ID = message.ID{
		FBlockID:   req.ID.FBlockID,
		InstanceID: req.ID.InstanceID,
		FunctionID: req.ID.FunctionID,
		OpType:     message.OpTypeResult,
	}
	reply.DestinationAddr = req.SourceAddr
	reply.SourceAddr = req.DestinationAddr
	reply.Payload[0] = 0 // ResultNoError
	s.link.Send(reply)
}
