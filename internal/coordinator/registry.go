package coordinator

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

// Device is a registry entry for one P2P-eligible device. The registry
// is the sole owner; the handle lives and dies with the entry.
type Device struct {
	ID            string
	DisplayName   string
	P2PEnabled    bool
	LastHeartbeat time.Time

	handle Handle
}

// Enable inserts or updates the registry entry for deviceID and
// broadcasts the updated device list to every enabled device. Calling
// it again for a known device just refreshes name and handle.
func (c *Coordinator) Enable(deviceID, name string, handle Handle) {
	c.mu.Lock()
	d, ok := c.devices[deviceID]
	if !ok {
		d = &Device{ID: deviceID}
		c.devices[deviceID] = d
	}
	d.DisplayName = name
	d.P2PEnabled = true
	d.LastHeartbeat = time.Now()
	d.handle = handle
	outs := c.deviceListLocked()
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"device": deviceID,
		"name":   name,
	}).Info("Device enabled p2p")

	c.deliver(outs)
}

// Disable removes the device, expires any request it is part of, falls
// back any session it participates in, and broadcasts the new list.
func (c *Coordinator) Disable(deviceID string) {
	c.mu.Lock()
	if _, ok := c.devices[deviceID]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.devices, deviceID)

	var outs []outbound
	var changes []modeChange

	// An in-flight request involving a vanished device is implicitly
	// expired; only a surviving initiator gets notified.
	if reqID, ok := c.pendingOutgoing[deviceID]; ok {
		outs = append(outs, c.expireRequestLocked(reqID)...)
	}
	if reqID, ok := c.pendingIncoming[deviceID]; ok {
		outs = append(outs, c.expireRequestLocked(reqID)...)
	}

	if sessID, ok := c.sessionByDevice[deviceID]; ok {
		fo, fc := c.triggerFallbackLocked(sessID, protocol.ReasonPeerDisconnected)
		outs = append(outs, fo...)
		changes = append(changes, fc...)
	}

	outs = append(outs, c.deviceListLocked()...)
	c.mu.Unlock()

	c.logger.WithField("device", deviceID).Info("Device disabled p2p")

	c.deliver(outs)
	c.notifyModes(changes)
}

// Heartbeat refreshes the liveness timestamp. Devices silent past the
// configured timeout are disabled by the janitor sweep.
func (c *Coordinator) Heartbeat(deviceID string) {
	c.touch(deviceID)
}

// Devices returns a snapshot of the registry, sorted by id.
func (c *Coordinator) Devices() []protocol.DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]protocol.DeviceInfo, 0, len(c.devices))
	for _, d := range c.devices {
		infos = append(infos, protocol.DeviceInfo{ID: d.ID, Name: d.DisplayName})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// deviceListLocked composes one p2p_devices_update per enabled device,
// each excluding the recipient itself.
func (c *Coordinator) deviceListLocked() []outbound {
	outs := make([]outbound, 0, len(c.devices))
	for id, d := range c.devices {
		infos := make([]protocol.DeviceInfo, 0, len(c.devices)-1)
		for otherID, other := range c.devices {
			if otherID == id {
				continue
			}
			infos = append(infos, protocol.DeviceInfo{ID: other.ID, Name: other.DisplayName})
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
		outs = append(outs, outbound{
			deviceID: id,
			handle:   d.handle,
			msg:      &protocol.DevicesUpdate{Devices: infos},
		})
	}
	return outs
}
