// Package mqtt provides MQTT client connectivity for wsn-deviceutils.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing device events and captured frames
//   - Subscribing to per-device command topics
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic layout
//
//	wsn/system/status               online/offline status of this process (retained)
//	wsn/devices/events              every observer event
//	wsn/devices/state/{key}         last known presence of one device (retained)
//	wsn/frames/{key}                frames captured from one device
//	wsn/command/{key}               frames to send to one device
//
// {key} is the device port turned into a single topic level, see DeviceKey.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.Frames(mqtt.DeviceKey("/dev/ttyUSB0"))
//	err = client.Publish(topic, payload, 1, false)
package mqtt
