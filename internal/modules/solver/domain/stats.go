package domain

import (
	"sync"
	"time"

	"cuckoohost/internal/platform/contract"
)

// Device tracks the activity of one worker slot.
type Device struct {
	mu    sync.Mutex
	id    uint32
	name  string
	stats contract.DeviceStats
}

func NewDevice(id uint32, name string) *Device {
	return &Device{id: id, name: name}
}

func (d *Device) Begin(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.InUse = 1
	d.stats.LastStartTime = now.Unix()
}

func (d *Device) End(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.InUse = 0
	d.stats.LastEndTime = now.Unix()
}

func (d *Device) Iteration() {
	d.mu.Lock()
	d.stats.IterationsCompleted++
	d.mu.Unlock()
}

func (d *Device) Found(now time.Time) {
	d.mu.Lock()
	d.stats.LastSolutionTime = now.Unix()
	d.mu.Unlock()
}

func (d *Device) Abandoned() {
	d.mu.Lock()
	d.stats.JobsAbandoned++
	d.mu.Unlock()
}

func (d *Device) Errored() {
	d.mu.Lock()
	d.stats.HasErrored = 1
	d.mu.Unlock()
}

func (d *Device) Snapshot() contract.DeviceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.stats
	out.DeviceID = d.id
	out.DeviceName = d.name
	return out
}
