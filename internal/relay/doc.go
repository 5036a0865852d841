// Package relay bridges the coordinator link and the device's local MQTT bus.
//
// Topic layout (see mqtt.Topics):
//
//	{prefix}/inbound/{name}              coordinator → plugins
//	{prefix}/reply/{reply_to}            plugin answers an inbound request
//	{prefix}/outbound/{mode}/{name}      plugins → coordinator
//	{prefix}/result/{reply_to}           outcome of an outbound request
//	{prefix}/link/state                  retained link lifecycle
//
// Modes are send, reliable, request and request-reliable, matching the
// four link sends. Inbound requests are held under a random reply token
// until a plugin answers or the token expires; each token answers once.
package relay
