package link

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NMCLI drives the radio through NetworkManager's command-line client.
type NMCLI struct {
	cfg Config
	run runner
}

func NewNMCLI(cfg Config) *NMCLI {
	return &NMCLI{cfg: cfg, run: execRunner}
}

func (n *NMCLI) Name() string { return "nmcli:" + n.cfg.Interface }

func (n *NMCLI) Connect(ctx context.Context) error {
	args := []string{
		"--wait", strconv.Itoa(int(n.cfg.Timeout.Seconds())),
		"device", "wifi", "connect", n.cfg.SSID,
	}
	if n.cfg.Password != "" {
		args = append(args, "password", n.cfg.Password)
	}
	args = append(args, "ifname", n.cfg.Interface)

	out, err := n.run(ctx, "nmcli", args...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := strings.TrimSpace(string(out))
	if isAuthFailure(msg) {
		return fmt.Errorf("nmcli connect %s: %w: %s", n.cfg.SSID, ports.ErrLinkAuth, msg)
	}
	return fmt.Errorf("nmcli connect %s: %v: %s", n.cfg.SSID, err, msg)
}

func (n *NMCLI) Disconnect(ctx context.Context) error {
	out, err := n.run(ctx, "nmcli", "device", "disconnect", n.cfg.Interface)
	if err != nil {
		return fmt.Errorf("nmcli disconnect %s: %v: %s", n.cfg.Interface, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (n *NMCLI) IsConnected(ctx context.Context) bool {
	out, err := n.run(ctx, "nmcli", "-t", "-f", "DEVICE,STATE", "device")
	if err != nil {
		return false
	}
	return deviceConnected(out, n.cfg.Interface)
}

// deviceConnected scans terse `nmcli -t -f DEVICE,STATE device` output.
func deviceConnected(out []byte, iface string) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		dev, state, ok := strings.Cut(sc.Text(), ":")
		if !ok || dev != iface {
			continue
		}
		return state == "connected"
	}
	return false
}

func isAuthFailure(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "secrets were required") ||
		strings.Contains(m, "invalid password") ||
		strings.Contains(m, "802.1x supplicant failed") ||
		strings.Contains(m, "no secrets")
}

var _ ports.Link = (*NMCLI)(nil)
