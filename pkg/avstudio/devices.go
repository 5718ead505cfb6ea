package avstudio

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Devices manages the devices paired with the account.  It holds no
// credentials of its own, everything goes through the Access it was
// built with.
type Devices struct {
	*Collection
}

// NewDevices returns a device client for either API generation
func NewDevices(access Access) *Devices {
	return &Devices{Collection: NewCollection(access, "devices", "device")}
}

type batchTask struct {
	Devices []string    `json:"Devices"`
	Task    taskCommand `json:"Task"`
}

type taskCommand struct {
	Cmd string `json:"cmd"`
}

type newDevice struct {
	DeviceID string `json:"DeviceID"`
	Name     string `json:"Name"`
}

// Get fetches one device
func (d *Devices) Get(deviceID string) (Object, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	return d.Collection.Get(deviceID)
}

// Delete removes one device
func (d *Devices) Delete(deviceID string) (json.RawMessage, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	return d.Collection.Delete(deviceID)
}

// RunCommand sends cmd to the device as a batch task
func (d *Devices) RunCommand(deviceID string, cmd string) (json.RawMessage, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	d.access.Logger().Infof("Running command %q on device %s", cmd, deviceID)

	task := batchTask{
		Devices: []string{deviceID},
		Task:    taskCommand{Cmd: cmd},
	}

	resp, err := d.access.PostJSON("devices/batch_task", task)
	if err != nil {
		return nil, err
	}

	return resp.RawJSON(), nil
}

// Add pairs a device with the account under name
func (d *Devices) Add(deviceID string, name string) (json.RawMessage, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	d.access.Logger().Infof("Adding device %s as %q", deviceID, name)

	resp, err := d.access.PostJSON("devices", newDevice{DeviceID: deviceID, Name: name})
	if err != nil {
		return nil, err
	}

	return resp.RawJSON(), nil
}

// SetName renames a device.  The device is read, renamed and written back
// whole, so a concurrent change made elsewhere is overwritten.
func (d *Devices) SetName(deviceID string, name string) (json.RawMessage, error) {
	device, err := d.Get(deviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching device %s to rename", deviceID)
	}

	device["Name"] = name

	d.access.Logger().Infof("Renaming device %s to %q", deviceID, name)

	resp, err := d.access.PutJSON(resourcePath("devices", deviceID), device)
	if err != nil {
		return nil, err
	}

	return resp.RawJSON(), nil
}

// Unpair detaches the device from the account
func (d *Devices) Unpair(deviceID string) (json.RawMessage, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	d.access.Logger().Infof("Unpairing device %s", deviceID)

	resp, err := d.access.Post(resourcePath("devices", deviceID, "unpair"))
	if err != nil {
		return nil, err
	}

	return resp.RawJSON(), nil
}

// GetTimeline lists the thumbnails recorded between start and end
func (d *Devices) GetTimeline(deviceID string, start string, end string) (json.RawMessage, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	d.access.Logger().Infof("Getting timeline of device %s from %s to %s", deviceID, start, end)

	path := withQuery(resourcePath("devices", deviceID, "thumbnails"),
		"from", start,
		"to", end,
	)

	return d.getRaw(path)
}

// GetWaveform fetches the audio waveform between start and end
func (d *Devices) GetWaveform(deviceID string, start string, end string) (json.RawMessage, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	d.access.Logger().Infof("Getting waveform of device %s from %s to %s", deviceID, start, end)

	path := withQuery(resourcePath("media", "waveform", deviceID),
		"from", start,
		"to", end,
		"timeOffset", "0",
	)

	return d.getRaw(path)
}

// GetThumbnail fetches the thumbnails between t1 and t2
func (d *Devices) GetThumbnail(deviceID string, t1 string, t2 string) (json.RawMessage, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	d.access.Logger().Infof("Getting thumbnails of device %s from %s to %s", deviceID, t1, t2)

	path := withQuery(resourcePath("devices", deviceID, "thumbnails"),
		"from", t1,
		"timeOffset", "0",
		"to", t2,
	)

	return d.getRaw(path)
}

// GetStateImage downloads the device's current state snapshot to localFileName
func (d *Devices) GetStateImage(deviceID string, localFileName string) (*Response, error) {
	if deviceID == "" {
		return nil, ErrEmptyDeviceID
	}

	d.access.Logger().Infof("Getting state image of device %s", deviceID)

	return d.access.DownloadFile(resourcePath("devices", deviceID, "state.jpg"), localFileName)
}

func (d *Devices) getRaw(path string) (json.RawMessage, error) {
	resp, err := d.access.Get(path)
	if err != nil {
		return nil, err
	}

	return resp.RawJSON(), nil
}
