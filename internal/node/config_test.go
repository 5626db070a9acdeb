package node

import "testing"

func TestSTUNConfigDefaults(t *testing.T) {
	cfg := STUNConfig(nil)
	if len(cfg.ICEServers) != 1 {
		t.Fatalf("expected one ICE server group, got %d", len(cfg.ICEServers))
	}
	if len(cfg.ICEServers[0].URLs) != len(defaultSTUNServers) {
		t.Errorf("expected the default STUN list, got %v", cfg.ICEServers[0].URLs)
	}
}

func TestSTUNConfigCustomServers(t *testing.T) {
	servers := []string{"stun:stun.example.com:3478"}
	cfg := STUNConfig(servers)
	if len(cfg.ICEServers[0].URLs) != 1 || cfg.ICEServers[0].URLs[0] != servers[0] {
		t.Errorf("custom servers not used: %v", cfg.ICEServers[0].URLs)
	}
}

func TestDefaultDataChannelConfig(t *testing.T) {
	dc := DefaultDataChannelConfig()
	if dc.Ordered == nil || !*dc.Ordered {
		t.Error("expected an ordered channel")
	}
	if dc.MaxRetransmits != nil {
		t.Error("expected unlimited retransmits")
	}
	if dc.Protocol == nil || *dc.Protocol != "file-transfer" {
		t.Error("expected the file-transfer protocol name")
	}
}
