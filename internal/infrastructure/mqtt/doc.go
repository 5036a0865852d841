// Package mqtt connects edgelink to the device's local MQTT bus.
//
// Local plugins never talk to the coordinator directly. They publish and
// subscribe on a broker (typically Mosquitto on localhost) and the relay
// bridges those topics onto the coordinator link:
//
//	plugins ↔ MQTT broker ↔ relay ↔ link ↔ coordinator
//
// The package provides the paho-based Client (auto-reconnect, restored
// subscriptions, a retained presence message with a last will) and the
// Topics builder that fixes the topic layout shared with plugins.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllOutbound(), client.QoS(),
//	    func(topic string, payload []byte) error {
//	        mode, name, ok := topics.ParseOutbound(topic)
//	        ...
//	    })
//
// # Security
//
// Enable TLS (cfg.Broker.TLS) whenever the broker is reachable off-box.
// Payloads are relayed as-is; the broker ACL decides which plugins may
// publish on the outbound topics.
package mqtt
