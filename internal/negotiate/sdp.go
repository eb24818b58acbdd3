package negotiate

import "strings"

// StereoOpus advertises stereo on every Opus payload that already enables
// in-band FEC, which is every Opus payload browsers and pion offer.
func StereoOpus(sdp string) string {
	return strings.ReplaceAll(sdp, "useinbandfec=1", "useinbandfec=1; stereo=1")
}
