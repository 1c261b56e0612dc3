// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager setup and conversion of mDNS answers
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{
		ServiceName: "test-server",
		Port:        8000,
	})
	defer mgr.Stop()

	if mgr.config.Path != DefaultPath {
		t.Errorf("expected default path %s, got %s", DefaultPath, mgr.config.Path)
	}
	if mgr.servers == nil {
		t.Error("servers channel should not be nil")
	}
}

func TestServerFromEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  string
	}{
		{
			name: "ipv4 with path",
			entry: &mdns.ServiceEntry{
				Name:       "kitchen._chatterbox._tcp.local.",
				AddrV4:     net.ParseIP("192.168.1.20"),
				Port:       8000,
				InfoFields: []string{"path=/talk"},
			},
			want: "http://192.168.1.20:8000/talk",
		},
		{
			name: "default path",
			entry: &mdns.ServiceEntry{
				AddrV4: net.ParseIP("10.0.0.5"),
				Port:   9000,
			},
			want: "http://10.0.0.5:9000/voice",
		},
		{
			name: "ipv6 only",
			entry: &mdns.ServiceEntry{
				AddrV6: net.ParseIP("fe80::1"),
				Port:   8000,
			},
			want: "http://[fe80::1]:8000/voice",
		},
		{
			name: "host name fallback",
			entry: &mdns.ServiceEntry{
				Host: "studio.local.",
				Port: 8000,
			},
			want: "http://studio.local:8000/voice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serverFromEntry(tt.entry)
			if server == nil {
				t.Fatal("expected server")
			}
			if got := server.Endpoint(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestServerFromEntryIncomplete(t *testing.T) {
	if s := serverFromEntry(&mdns.ServiceEntry{Port: 8000}); s != nil {
		t.Errorf("expected nil without an address, got %+v", s)
	}
	if s := serverFromEntry(&mdns.ServiceEntry{AddrV4: net.ParseIP("10.0.0.1")}); s != nil {
		t.Errorf("expected nil without a port, got %+v", s)
	}
}
