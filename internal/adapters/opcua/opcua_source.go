// Package opcua reads pulses from a PLC counter tag over OPC UA.
package opcua

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/PulseFlow/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session and
// watch one counter tag.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	NodeID           string        `yaml:"node_id"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "PulseFlow Edge"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.NodeID == "" {
		return errors.New("node_id of the counter tag is required")
	}
	if _, err := ua.ParseNodeID(c.NodeID); err != nil {
		return fmt.Errorf("parse node id %q: %w", c.NodeID, err)
	}
	return nil
}

// Source subscribes to a monotonically increasing counter tag and records the
// increase between notifications as edges.
type Source struct {
	cfg Config
	obs ports.Observability

	mu      sync.Mutex
	client  *opcua.Client
	sub     *opcua.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	tracker deltaTracker
	started bool
}

func NewSource(cfg Config, obs ports.Observability) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, errors.New("observability is required")
	}
	return &Source{cfg: cfg, obs: obs}, nil
}

func (s *Source) Name() string { return "opcua:" + s.cfg.NodeID }

func (s *Source) Start(rec ports.EdgeRecorder) error {
	if rec == nil {
		return errors.New("edge recorder is required")
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("opcua source already started")
	}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	client, err := opcua.NewClient(s.cfg.Endpoint, s.buildClientOptions()...)
	if err != nil {
		cancel()
		return fmt.Errorf("opcua new client: %w", err)
	}

	cctx, ccancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	err = client.Connect(cctx)
	ccancel()
	if err != nil {
		cancel()
		return fmt.Errorf("opcua connect: %w", err)
	}

	notifyCh := make(chan *opcua.PublishNotificationData, 16)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: s.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		cancel()
		_ = client.Close(ctx)
		return fmt.Errorf("opcua subscribe: %w", err)
	}

	nodeID, _ := ua.ParseNodeID(s.cfg.NodeID)
	req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, 1)
	if s.cfg.SamplingInterval > 0 {
		req.RequestedParameters.SamplingInterval = float64(s.cfg.SamplingInterval / time.Millisecond)
	}
	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
	switch {
	case err != nil:
		s.cleanupOnError(ctx, cancel, sub, client)
		return fmt.Errorf("monitor node %q: %w", s.cfg.NodeID, err)
	case len(res.Results) == 0:
		s.cleanupOnError(ctx, cancel, sub, client)
		return fmt.Errorf("monitor node %q failed: empty result", s.cfg.NodeID)
	case res.Results[0].StatusCode != ua.StatusOK:
		s.cleanupOnError(ctx, cancel, sub, client)
		return fmt.Errorf("monitor node %q failed: %s", s.cfg.NodeID, res.Results[0].StatusCode)
	}

	s.mu.Lock()
	s.client = client
	s.sub = sub
	s.cancel = cancel
	s.tracker = deltaTracker{}
	s.started = true
	s.mu.Unlock()

	s.obs.LogInfo("pulse_source_started",
		ports.Field{Key: "source", Value: s.Name()},
		ports.Field{Key: "endpoint", Value: s.cfg.Endpoint})

	s.wg.Add(1)
	go s.consume(ctx, notifyCh, rec)
	return nil
}

func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	sub := s.sub
	client := s.client
	s.started = false
	s.cancel = nil
	s.sub = nil
	s.client = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()

	var err error
	if sub != nil {
		if e := sub.Cancel(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}
	if client != nil {
		if e := client.Close(ctx); e != nil && !errors.Is(e, context.Canceled) {
			err = errors.Join(err, e)
		}
	}

	s.wg.Wait()
	return err
}

func (s *Source) consume(ctx context.Context, ch <-chan *opcua.PublishNotificationData, rec ports.EdgeRecorder) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notif := <-ch:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				s.obs.LogWarn("opcua_notification_error", ports.Field{Key: "error", Value: notif.Error.Error()})
				continue
			}
			s.safeProcess(notif.Value, rec)
		}
	}
}

// safeProcess keeps a malformed notification from taking the process down.
func (s *Source) safeProcess(val interface{}, rec ports.EdgeRecorder) {
	defer func() {
		if r := recover(); r != nil {
			s.obs.LogError("opcua_notification_panic", fmt.Errorf("%v", r),
				ports.Field{Key: "node", Value: s.cfg.NodeID})
		}
	}()
	s.processNotification(val, rec)
}

func (s *Source) processNotification(val interface{}, rec ports.EdgeRecorder) {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return
	}
	for _, item := range data.MonitoredItems {
		if item == nil || item.Value == nil {
			continue
		}
		// Bad and Uncertain values carry no trustworthy count.
		if item.Value.Status != ua.StatusOK {
			s.obs.LogWarn("opcua_bad_status",
				ports.Field{Key: "node", Value: s.cfg.NodeID},
				ports.Field{Key: "status", Value: item.Value.Status.Error()})
			continue
		}
		count, ok := variantToCount(item.Value.Value)
		if !ok {
			var raw interface{}
			if item.Value.Value != nil {
				raw = item.Value.Value.Value()
			}
			s.obs.LogWarn("opcua_unsupported_value",
				ports.Field{Key: "node", Value: s.cfg.NodeID},
				ports.Field{Key: "type", Value: fmt.Sprintf("%T", raw)})
			continue
		}
		delta, rebased := s.tracker.observe(count)
		if rebased {
			s.obs.LogWarn("counter_rebaselined",
				ports.Field{Key: "node", Value: s.cfg.NodeID},
				ports.Field{Key: "value", Value: count})
		}
		rec.AddEdges(delta)
	}
}

func (s *Source) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(s.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(s.cfg.SecurityPolicy)),
		opcua.ApplicationName(s.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if s.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(s.cfg.Username, s.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func (s *Source) cleanupOnError(ctx context.Context, cancel context.CancelFunc, sub *opcua.Subscription, client *opcua.Client) {
	cancel()
	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if client != nil {
		_ = client.Close(ctx)
	}
}

// deltaTracker turns successive counter readings into increments. The first
// reading and any decrease (PLC restart, wrap) only set a new baseline.
type deltaTracker struct {
	last uint64
	seen bool
}

func (d *deltaTracker) observe(v uint64) (delta uint64, rebased bool) {
	switch {
	case !d.seen:
		d.seen = true
	case v < d.last:
		rebased = true
	default:
		delta = v - d.last
	}
	d.last = v
	return delta, rebased
}

// variantToCount accepts non-negative integer or float counter values.
func variantToCount(v *ua.Variant) (uint64, bool) {
	if v == nil {
		return 0, false
	}
	var f float64
	switch val := v.Value().(type) {
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case int8:
		f = float64(val)
	case int16:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case float32:
		f = float64(val)
	case float64:
		f = val
	default:
		return 0, false
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return uint64(f), true
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.PulseSource = (*Source)(nil)
