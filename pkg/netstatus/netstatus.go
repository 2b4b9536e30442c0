// Package netstatus implements the Network Status Cache: a passive
// consumer of INIC-status frames that maintains the live ring status and
// config, replaying the current value to a late subscriber before handing
// it the normal change-mask notifications.
package netstatus

import "github.com/unicens-project/ucs-go/internal/observer"

// Availability is the cached ring-availability state.
type Availability int

const (
	AvailabilityUnknown Availability = iota
	AvailabilityNotAvailable
	AvailabilityAvailable
	AvailabilityStabilizing
)

// TransitionCause explains the most recent availability change.
type TransitionCause int

const (
	TransitionCauseNone TransitionCause = iota
	TransitionCauseUnknown
	TransitionCauseNoSignal
	TransitionCauseCritUnlock
	TransitionCauseNetOff
	TransitionCauseCableLink
)

// Change-mask bits for Status.
const (
	ChangeAvailability uint32 = 1 << iota
	ChangeAvailInfo
	ChangeTransitionCause
	ChangeEvents
	ChangePacketBW
	ChangeNodeAddress
	ChangeNodePosition
	ChangeMaxPosition
)

// Status mirrors the cached ring properties: availability, the reason
// for the last transition, and the node's own address/position info.
type Status struct {
	Availability    Availability
	AvailInfo       uint8
	TransitionCause TransitionCause
	Events          uint32
	PacketBW        uint16
	NodeAddress     uint16
	NodePosition    uint8
	MaxPosition     uint8
}

// Config-mask bits for Config.
const (
	ChangeConfigNodeAddress uint32 = 1 << iota
	ChangeConfigGroupAddress
	ChangeConfigLLRBC
)

// Config mirrors the cached network config.
type Config struct {
	NodeAddress  uint16
	GroupAddress uint16
	LLRBC        uint8
}

// ChangeEvent is delivered on the normal subject whenever the cache is
// updated; Mask names which fields changed since the previous update.
type ChangeEvent struct {
	Status Status
	Mask   uint32
}

// ConfigChangeEvent is the Config analogue of ChangeEvent.
type ConfigChangeEvent struct {
	Config Config
	Mask   uint32
}

// AddressClass classifies an address against the cached node/group
// addresses.
type AddressClass int

const (
	AddressNone AddressClass = iota
	AddressNode
	AddressGroup
)

// Cache is the Network Status Cache. One per runtime instance.
type Cache struct {
	status      Status
	statusValid bool
	statusSub   observer.Subject

	config      Config
	configValid bool
	configSub   observer.Subject
}

// New creates an empty, unpopulated cache.
func New() *Cache {
	return &Cache{}
}

// AddStatusObserver subscribes obs to status updates. If the cache already
// holds a value, obs is also notified once immediately so latecomers see
// consistent state before receiving the first live update.
func (c *Cache) AddStatusObserver(obs observer.Observer) error {
	if err := c.statusSub.Add(obs); err != nil {
		return err
	}
	if c.statusValid {
		obs.Notify(ChangeEvent{Status: c.status, Mask: ^uint32(0)})
	}
	return nil
}

// RemoveStatusObserver unsubscribes obs from status updates.
func (c *Cache) RemoveStatusObserver(obs observer.Observer) error {
	return c.statusSub.Remove(obs)
}

// IngestStatus updates the cached status, computes the change mask
// relative to the previous value, and notifies subscribers. On the first
// ingest every mask bit is set, as in the latecomer replay.
func (c *Cache) IngestStatus(s Status) {
	var mask uint32
	if !c.statusValid || c.status.Availability != s.Availability {
		mask |= ChangeAvailability
	}
	if !c.statusValid || c.status.AvailInfo != s.AvailInfo {
		mask |= ChangeAvailInfo
	}
	if !c.statusValid || c.status.TransitionCause != s.TransitionCause {
		mask |= ChangeTransitionCause
	}
	if !c.statusValid || c.status.Events != s.Events {
		mask |= ChangeEvents
	}
	if !c.statusValid || c.status.PacketBW != s.PacketBW {
		mask |= ChangePacketBW
	}
	if !c.statusValid || c.status.NodeAddress != s.NodeAddress {
		mask |= ChangeNodeAddress
	}
	if !c.statusValid || c.status.NodePosition != s.NodePosition {
		mask |= ChangeNodePosition
	}
	if !c.statusValid || c.status.MaxPosition != s.MaxPosition {
		mask |= ChangeMaxPosition
	}
	if !c.statusValid {
		mask = ^uint32(0)
	}
	c.status = s
	c.statusValid = true
	c.statusSub.Notify(ChangeEvent{Status: s, Mask: mask})
}

// Status returns the currently cached status and whether it has ever been
// populated. Reads are synchronous — no lock, no message.
func (c *Cache) Status() (Status, bool) {
	return c.status, c.statusValid
}

// AddConfigObserver subscribes obs to config updates, with the same
// latecomer replay semantics as AddStatusObserver.
func (c *Cache) AddConfigObserver(obs observer.Observer) error {
	if err := c.configSub.Add(obs); err != nil {
		return err
	}
	if c.configValid {
		obs.Notify(ConfigChangeEvent{Config: c.config, Mask: ^uint32(0)})
	}
	return nil
}

// RemoveConfigObserver unsubscribes obs from config updates.
func (c *Cache) RemoveConfigObserver(obs observer.Observer) error {
	return c.configSub.Remove(obs)
}

// IngestConfig updates the cached config and notifies subscribers.
func (c *Cache) IngestConfig(cfg Config) {
	var mask uint32
	if !c.configValid || c.config.NodeAddress != cfg.NodeAddress {
		mask |= ChangeConfigNodeAddress
	}
	if !c.configValid || c.config.GroupAddress != cfg.GroupAddress {
		mask |= ChangeConfigGroupAddress
	}
	if !c.configValid || c.config.LLRBC != cfg.LLRBC {
		mask |= ChangeConfigLLRBC
	}
	c.config = cfg
	c.configValid = true
	c.configSub.Notify(ConfigChangeEvent{Config: cfg, Mask: mask})
}

// Config returns the currently cached config and whether it has ever been
// populated.
func (c *Cache) Config() (Config, bool) {
	return c.config, c.configValid
}

// IsOwnAddress classifies addr against the cached node and group
// addresses.
func (c *Cache) IsOwnAddress(addr uint16) AddressClass {
	if c.configValid && addr == c.config.NodeAddress {
		return AddressNode
	}
	if c.configValid && addr == c.config.GroupAddress {
		return AddressGroup
	}
	return AddressNone
}

// IsAvailable reports whether the ring is currently available.
func (c *Cache) IsAvailable() bool {
	return c.statusValid && c.status.Availability == AvailabilityAvailable
}
