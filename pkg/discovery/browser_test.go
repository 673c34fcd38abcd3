package discovery

import (
	"testing"
	"time"
)

func TestDefaultBrowserConfig(t *testing.T) {
	cfg := DefaultBrowserConfig()
	if cfg.BrowseTimeout != 10*time.Second {
		t.Errorf("BrowseTimeout = %v, want 10s", cfg.BrowseTimeout)
	}
	if cfg.Interface != "" {
		t.Errorf("Interface = %q, want empty", cfg.Interface)
	}
}

func TestFilterBySerial(t *testing.T) {
	filter := FilterBySerial("nj-2316-005k6")

	if !filter(&PanelService{Serial: "nj-2316-005k6"}) {
		t.Error("matching serial should pass")
	}
	if filter(&PanelService{Serial: "nj-9999-00000"}) {
		t.Error("non-matching serial should not pass")
	}
}

func TestFilterIPv4Only(t *testing.T) {
	filter := FilterIPv4Only()

	if !filter(&PanelService{Addresses: []string{"192.168.1.2"}}) {
		t.Error("IPv4 panel should pass")
	}
	if filter(&PanelService{Addresses: []string{"fe80::1"}}) {
		t.Error("IPv6-only panel should not pass")
	}
}

func TestFilterBrowseResults(t *testing.T) {
	in := make(chan *PanelService, 3)
	in <- &PanelService{Serial: "aaa"}
	in <- &PanelService{Serial: "bbb"}
	in <- &PanelService{Serial: "aaa"}
	close(in)

	out := FilterBrowseResults(in, FilterBySerial("aaa"))

	var got []*PanelService
	for svc := range out {
		got = append(got, svc)
	}
	if len(got) != 2 {
		t.Errorf("got %d results, want 2", len(got))
	}
}

func TestServiceEntryToPanelService(t *testing.T) {
	entry := &ServiceEntry{
		Instance: "span-nj-2316-005k6",
		Service:  ServiceTypePanel,
		Domain:   Domain,
		Host:     "span-gateway.local.",
		Port:     80,
		Text:     []string{"serial=nj-2316-005k6", "model=00200-0008-01", "fw=spanos2/r202342/04"},
		Addrs:    []string{"192.168.1.2"},
	}

	svc, err := entry.ToPanelService()
	if err != nil {
		t.Fatalf("ToPanelService failed: %v", err)
	}

	if svc.Serial != "nj-2316-005k6" {
		t.Errorf("Serial = %q, want nj-2316-005k6", svc.Serial)
	}
	if svc.Model != "00200-0008-01" {
		t.Errorf("Model = %q, want 00200-0008-01", svc.Model)
	}
	if svc.InstanceName != "span-nj-2316-005k6" {
		t.Errorf("InstanceName = %q", svc.InstanceName)
	}
	if svc.PreferredAddress() != "192.168.1.2" {
		t.Errorf("PreferredAddress() = %q, want 192.168.1.2", svc.PreferredAddress())
	}
}

func TestServiceEntryToPanelServiceNoSerial(t *testing.T) {
	entry := &ServiceEntry{
		Instance: "some-other-device",
		Text:     []string{"model=unknown"},
	}

	if _, err := entry.ToPanelService(); err == nil {
		t.Error("entry without serial should fail to convert")
	}
}
