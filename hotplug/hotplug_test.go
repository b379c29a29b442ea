package hotplug

import "testing"

func TestParseUevent(t *testing.T) {
	data := []byte("change@/devices/pci0000:00/0000:00:02.0/drm/card0\x00" +
		"ACTION=change\x00DEVPATH=/devices/pci0000:00/0000:00:02.0/drm/card0\x00" +
		"SUBSYSTEM=drm\x00HOTPLUG=1\x00SEQNUM=4711\x00")

	ev, ok := parseUevent(data)
	if !ok {
		t.Fatal("expected a kernel uevent")
	}
	if ev.action != "change" {
		t.Errorf("expected action change, got %q", ev.action)
	}
	if ev.env["SUBSYSTEM"] != "drm" {
		t.Errorf("expected drm subsystem, got %q", ev.env["SUBSYSTEM"])
	}
	if !ev.topologyChange() {
		t.Error("expected a topology change")
	}
}

func TestParseUeventRejectsNonKernel(t *testing.T) {
	if _, ok := parseUevent([]byte("libudev\x00\xfe\xed\xca\xfe")); ok {
		t.Error("expected libudev message to be rejected")
	}
	if _, ok := parseUevent(nil); ok {
		t.Error("expected empty datagram to be rejected")
	}
}

func TestTopologyChangeFilter(t *testing.T) {
	testCases := []struct {
		action    string
		subsystem string
		want      bool
	}{
		{"change", "drm", true},
		{"add", "graphics", true},
		{"remove", "drm", true},
		{"bind", "drm", false},
		{"change", "usb", false},
	}
	for _, tc := range testCases {
		ev := uevent{action: tc.action, env: map[string]string{"SUBSYSTEM": tc.subsystem}}
		if got := ev.topologyChange(); got != tc.want {
			t.Errorf("%s@%s: got %v, want %v", tc.action, tc.subsystem, got, tc.want)
		}
	}
}
