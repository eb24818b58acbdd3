// Command aero-webrtc-peer is a terminal party for the pairing relay: it
// creates or joins a session, negotiates a direct WebRTC connection with the
// other party and exchanges stdin lines over a data channel.
package main

func main() {
	Execute()
}
