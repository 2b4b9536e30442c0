package inic

// Method bits identify the API-lock bit (and SingleSubject UserMask) for
// each command template instance. The command set is closed and known at
// compile time, so these are plain constants rather than a runtime
// allocator.
const (
	BitDeviceStatusGet uint32 = 1 << iota
	BitDeviceVersionGet
	BitDevicePowerOff
	BitDeviceAttach
	BitDeviceSync
	BitNetworkStatusGet
	BitNetworkConfigGet
	BitNetworkConfigSet
	BitNetworkStartupUnused // startup uses its own boolean lock, not this bit
	BitNetworkShutdown
	BitNetworkTriggerRBD
	BitNetworkAttach
	BitNetworkDetach
	BitNetworkForceNotAvail
	BitNetworkSysDiag
	BitNetworkBackChannelDiag
	BitMostPortStatusGet
	BitSocketCreate
	BitResourceDestroy
	BitResourceInvalidList
)
