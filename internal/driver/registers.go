package driver

import (
	"fmt"
	"sort"
	"sync"
)

// RegisterID addresses a fixed configuration register of the I/O controller,
// reached through the service data channel.
type RegisterID uint16

const (
	RegFirmwareLow  RegisterID = 0x0001
	RegFirmwareHigh RegisterID = 0x0002
	RegHardwareLow  RegisterID = 0x0003
	RegHardwareHigh RegisterID = 0x0004
	RegCPUID1       RegisterID = 0x0005
	RegCPUID2       RegisterID = 0x0006
	RegCPUID3       RegisterID = 0x0007
	RegCPUID4       RegisterID = 0x0008
	RegWatchdog     RegisterID = 0x100F
	RegRS485Baud    RegisterID = 0x1010
	RegRS485Mode    RegisterID = 0x1011
	RegCounter1Mode RegisterID = 0x1024
	RegCounter2Mode RegisterID = 0x1025
)

// Register values used during bootstrap.
const (
	CounterModeOff   uint16 = 0x0000
	RS485DefaultMode uint16 = 0x0000
	RS485Baud38400   uint16 = 384 // baud / 100
)

var registerNames = map[RegisterID]string{
	RegFirmwareLow:  "FWVERL",
	RegFirmwareHigh: "FWVERH",
	RegHardwareLow:  "HWVERL",
	RegHardwareHigh: "HWVERH",
	RegCPUID1:       "CPUID1",
	RegCPUID2:       "CPUID2",
	RegCPUID3:       "CPUID3",
	RegCPUID4:       "CPUID4",
	RegWatchdog:     "WATCHDOG",
	RegRS485Baud:    "RS485BAUD",
	RegRS485Mode:    "RS485MODE",
	RegCounter1Mode: "CNT1MODE",
	RegCounter2Mode: "CNT2MODE",
}

func (id RegisterID) String() string {
	if name, ok := registerNames[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%04X", uint16(id))
}

// KnownRegisters lists every register the bridge reads at startup, in address order.
func KnownRegisters() []RegisterID {
	ids := make([]RegisterID, 0, len(registerNames))
	for id := range registerNames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Registers is the device register table, built once at startup.
// Lookups of registers the device did not report return ok=false.
type Registers struct {
	mu      sync.RWMutex
	values  map[RegisterID]uint16
	onWrite func(id RegisterID, value uint16)
}

// NewRegisters creates a table holding the given values.
func NewRegisters(values map[RegisterID]uint16) *Registers {
	r := &Registers{values: make(map[RegisterID]uint16, len(values))}
	for id, v := range values {
		r.values[id] = v
	}
	return r
}

// Get returns the value of a register and whether the device has it.
func (r *Registers) Get(id RegisterID) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[id]
	return v, ok
}

// Set changes a register the device has and forwards the write to the
// device. Returns false, changing nothing, for an unknown register.
func (r *Registers) Set(id RegisterID, value uint16) bool {
	r.mu.Lock()
	if _, ok := r.values[id]; !ok {
		r.mu.Unlock()
		return false
	}
	r.values[id] = value
	onWrite := r.onWrite
	r.mu.Unlock()

	if onWrite != nil {
		onWrite(id, value)
	}
	return true
}

// IDs returns the registers present in the table, in address order.
func (r *Registers) IDs() []RegisterID {
	r.mu.RLock()
	ids := make([]RegisterID, 0, len(r.values))
	for id := range r.values {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// store records a value reported by the device without forwarding it.
func (r *Registers) store(id RegisterID, value uint16) {
	r.mu.Lock()
	r.values[id] = value
	r.mu.Unlock()
}

func (r *Registers) setWriteHook(f func(id RegisterID, value uint16)) {
	r.mu.Lock()
	r.onWrite = f
	r.mu.Unlock()
}
