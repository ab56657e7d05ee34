package rtsp

import "fmt"

// spropParameterSets is captured verbatim from the device this system
// simulates; this system never transcodes, so the SDP always advertises
// this fixed parameter set regardless of which log is being replayed.
const spropParameterSets = "Z2QAKK3FTYY4jFRWKmwxxGKisVNhjiMVFRBIjEc2SSIJEYjmySRBIjEc2SQtAKAPP+A1SAAAXdgACvyHsQPoAAYahf//HYgfQAAw1C//+FA=,aM44MA=="

// buildSDP advertises one H.264 video track at payload type 98, clock
// rate 90000, interpolating bindAddr into the origin field. The
// connection field is always 0.0.0.0.
func buildSDP(bindAddr string) string {
	return fmt.Sprintf(
		"v=0\r\n"+
			"o=- 1 1 IN IP4 %s\r\n"+
			"c=IN IP4 0.0.0.0\r\n"+
			"b=AS:9216\r\n"+
			"t=0 0\r\n"+
			"a=control:*\r\n"+
			"a=range:npt=now-\r\n"+
			"m=video 0 RTP/AVP 98\r\n"+
			"b=AS:9216\r\n"+
			"a=framerate:30.0\r\n"+
			"a=control:trackID=1\r\n"+
			"a=rtpmap:98 H264/90000\r\n"+
			"a=fmtp:98 packetization-mode=1; profile-level-id=640028; sprop-parameter-sets=%s\r\n"+
			"a=h264-esid:201\r\n"+
			"\r\n",
		bindAddr, spropParameterSets,
	)
}
