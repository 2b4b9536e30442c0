package netstatus

import "testing"

type recordingObserver struct {
	events []any
}

func (r *recordingObserver) Notify(data any) {
	r.events = append(r.events, data)
}

func TestAddStatusObserverNoReplayBeforeFirstIngest(t *testing.T) {
	c := New()
	obs := &recordingObserver{}
	if err := c.AddStatusObserver(obs); err != nil {
		t.Fatalf("AddStatusObserver() error = %v", err)
	}
	if len(obs.events) != 0 {
		t.Errorf("events = %v, want none before any IngestStatus", obs.events)
	}
}

func TestIngestStatusNotifiesWithFullMaskOnFirstIngest(t *testing.T) {
	c := New()
	obs := &recordingObserver{}
	c.AddStatusObserver(obs)

	c.IngestStatus(Status{Availability: AvailabilityAvailable, NodeAddress: 0x100})
	if len(obs.events) != 1 {
		t.Fatalf("events = %v, want 1", obs.events)
	}
	ev := obs.events[0].(ChangeEvent)
	if ev.Mask != ^uint32(0) {
		t.Errorf("first ingest mask = %#x, want all bits set", ev.Mask)
	}
	if ev.Status.Availability != AvailabilityAvailable {
		t.Errorf("Status.Availability = %v, want Available", ev.Status.Availability)
	}
}

func TestIngestStatusMaskReflectsOnlyChangedFields(t *testing.T) {
	c := New()
	c.IngestStatus(Status{Availability: AvailabilityAvailable, NodeAddress: 0x100, PacketBW: 50})

	obs := &recordingObserver{}
	c.AddStatusObserver(obs)
	// The replay notification for the already-populated cache lands first.
	if len(obs.events) != 1 {
		t.Fatalf("events after Add on populated cache = %v, want 1 replay", obs.events)
	}
	obs.events = nil

	c.IngestStatus(Status{Availability: AvailabilityAvailable, NodeAddress: 0x100, PacketBW: 75})
	if len(obs.events) != 1 {
		t.Fatalf("events = %v, want 1", obs.events)
	}
	ev := obs.events[0].(ChangeEvent)
	if ev.Mask != ChangePacketBW {
		t.Errorf("mask = %#x, want only ChangePacketBW", ev.Mask)
	}
}

func TestAddStatusObserverReplaysCurrentValueToLatecomer(t *testing.T) {
	c := New()
	c.IngestStatus(Status{Availability: AvailabilityStabilizing})

	obs := &recordingObserver{}
	c.AddStatusObserver(obs)
	if len(obs.events) != 1 {
		t.Fatalf("events = %v, want 1 replay notification", obs.events)
	}
	ev := obs.events[0].(ChangeEvent)
	if ev.Status.Availability != AvailabilityStabilizing {
		t.Errorf("replayed Status.Availability = %v, want Stabilizing", ev.Status.Availability)
	}
}

func TestRemoveStatusObserverStopsFutureNotifications(t *testing.T) {
	c := New()
	obs := &recordingObserver{}
	c.AddStatusObserver(obs)
	if err := c.RemoveStatusObserver(obs); err != nil {
		t.Fatalf("RemoveStatusObserver() error = %v", err)
	}

	c.IngestStatus(Status{Availability: AvailabilityAvailable})
	if len(obs.events) != 0 {
		t.Errorf("events = %v, want none after Remove", obs.events)
	}
}

func TestIngestConfigAndReplay(t *testing.T) {
	c := New()
	c.IngestConfig(Config{NodeAddress: 0x200, GroupAddress: 0x300, LLRBC: 1})

	obs := &recordingObserver{}
	c.AddConfigObserver(obs)
	if len(obs.events) != 1 {
		t.Fatalf("events = %v, want 1 replay", obs.events)
	}
	ev := obs.events[0].(ConfigChangeEvent)
	if ev.Config.NodeAddress != 0x200 {
		t.Errorf("replayed NodeAddress = %#x, want 0x200", ev.Config.NodeAddress)
	}

	obs.events = nil
	c.IngestConfig(Config{NodeAddress: 0x200, GroupAddress: 0x301, LLRBC: 1})
	ev = obs.events[0].(ConfigChangeEvent)
	if ev.Mask != ChangeConfigGroupAddress {
		t.Errorf("mask = %#x, want only ChangeConfigGroupAddress", ev.Mask)
	}
}

func TestIsOwnAddress(t *testing.T) {
	c := New()
	if got := c.IsOwnAddress(0x100); got != AddressNone {
		t.Errorf("IsOwnAddress() before config = %v, want AddressNone", got)
	}

	c.IngestConfig(Config{NodeAddress: 0x100, GroupAddress: 0x200})
	if got := c.IsOwnAddress(0x100); got != AddressNode {
		t.Errorf("IsOwnAddress(node) = %v, want AddressNode", got)
	}
	if got := c.IsOwnAddress(0x200); got != AddressGroup {
		t.Errorf("IsOwnAddress(group) = %v, want AddressGroup", got)
	}
	if got := c.IsOwnAddress(0x300); got != AddressNone {
		t.Errorf("IsOwnAddress(other) = %v, want AddressNone", got)
	}
}

func TestIsAvailable(t *testing.T) {
	c := New()
	if c.IsAvailable() {
		t.Error("IsAvailable() = true before any status ingested")
	}
	c.IngestStatus(Status{Availability: AvailabilityNotAvailable})
	if c.IsAvailable() {
		t.Error("IsAvailable() = true for AvailabilityNotAvailable")
	}
	c.IngestStatus(Status{Availability: AvailabilityAvailable})
	if !c.IsAvailable() {
		t.Error("IsAvailable() = false for AvailabilityAvailable")
	}
}

func TestStatusAndConfigAccessors(t *testing.T) {
	c := New()
	if _, ok := c.Status(); ok {
		t.Error("Status() ok = true before any ingest")
	}
	if _, ok := c.Config(); ok {
		t.Error("Config() ok = true before any ingest")
	}

	c.IngestStatus(Status{NodePosition: 3})
	s, ok := c.Status()
	if !ok || s.NodePosition != 3 {
		t.Errorf("Status() = (%+v, %v), want NodePosition 3, true", s, ok)
	}
}

func TestNodeTableObserveAndSetAvailable(t *testing.T) {
	nt := NewNodeTable()
	n := nt.Observe(0x10, 2)
	if n.Address != 0x10 || n.Position != 2 || n.Available {
		t.Errorf("Observe() = %+v, want {Address:0x10 Position:2 Available:false}", n)
	}
	if nt.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", nt.Len())
	}

	nt.SetAvailable(0x10, true)
	got, ok := nt.Get(0x10)
	if !ok || !got.Available {
		t.Errorf("Get(0x10) = (%+v, %v), want Available true", got, ok)
	}

	// Re-observing the same address updates position without duplicating.
	nt.Observe(0x10, 5)
	if nt.Len() != 1 {
		t.Errorf("Len() = %d after re-observe, want still 1", nt.Len())
	}
	got, _ = nt.Get(0x10)
	if got.Position != 5 {
		t.Errorf("Position = %d after re-observe, want 5", got.Position)
	}
}

func TestNodeTableSetAvailableUnknownNodeIsNoop(t *testing.T) {
	nt := NewNodeTable()
	nt.SetAvailable(0x99, true)
	if _, ok := nt.Get(0x99); ok {
		t.Error("Get() found a node that was never Observe()d")
	}
}
