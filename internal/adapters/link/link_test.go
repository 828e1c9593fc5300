package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

func TestNMCLIConnectBuildsCommand(t *testing.T) {
	cfg := Config{Kind: KindNMCLI, SSID: "plant-wifi", Password: "secret", Interface: "wlan1", Timeout: 20 * time.Second}
	n := NewNMCLI(cfg)

	var got []string
	n.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		got = append([]string{name}, args...)
		return []byte("Device 'wlan1' successfully activated"), nil
	}

	require.NoError(t, n.Connect(context.Background()))
	assert.Equal(t, []string{
		"nmcli", "--wait", "20", "device", "wifi", "connect", "plant-wifi",
		"password", "secret", "ifname", "wlan1",
	}, got)
}

func TestNMCLIConnectClassifiesAuthFailure(t *testing.T) {
	n := NewNMCLI(Config{SSID: "plant-wifi", Interface: "wlan0", Timeout: time.Second})
	n.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Error: Connection activation failed: (7) Secrets were required, but not provided."), errors.New("exit status 4")
	}

	err := n.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrLinkAuth)
}

func TestNMCLIConnectOtherFailure(t *testing.T) {
	n := NewNMCLI(Config{SSID: "plant-wifi", Interface: "wlan0", Timeout: time.Second})
	n.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Error: No network with SSID 'plant-wifi' found."), errors.New("exit status 10")
	}

	err := n.Connect(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrLinkAuth)
}

func TestDeviceConnected(t *testing.T) {
	out := []byte("eth0:unavailable\nwlan0:connected\nlo:unmanaged\n")
	assert.True(t, deviceConnected(out, "wlan0"))
	assert.False(t, deviceConnected(out, "eth0"))
	assert.False(t, deviceConnected(out, "wlan1"))
}

func TestStaticLink(t *testing.T) {
	s := NewStatic()
	ctx := context.Background()
	assert.True(t, s.IsConnected(ctx))
	require.NoError(t, s.Disconnect(ctx))
	assert.False(t, s.IsConnected(ctx))
	require.NoError(t, s.Connect(ctx))
	assert.True(t, s.IsConnected(ctx))
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, KindStatic, cfg.Kind)
	assert.NoError(t, cfg.Validate())

	cfg = Config{Kind: "NMCLI"}
	cfg.ApplyDefaults()
	assert.Error(t, cfg.Validate(), "nmcli needs an ssid")

	cfg = Config{Kind: "bluetooth"}
	cfg.ApplyDefaults()
	assert.Error(t, cfg.Validate())
}
