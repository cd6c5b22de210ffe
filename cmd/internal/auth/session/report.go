package session

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// ReasonSharedDevice explains why a device was flagged.
const ReasonSharedDevice = "multiple users on same device"

const expiringWindow = 24 * time.Hour

// Stats is a point-in-time view of the session population.
type Stats struct {
	Total             int
	Active            int // active and not expired
	Inactive          int // Total - Active
	Expired           int // past expiry, active or not
	Revoked           int // active == false
	ExpiringWithin24h int
	UniqueUsers       int
	UniqueDevices     int
	// AvgSessionsPerUser is Total / UniqueUsers, or 0 with no users.
	AvgSessionsPerUser float64
	TakenAt            time.Time
}

// DeviceReport describes a device/IP pair used by several usernames.
type DeviceReport struct {
	DeviceInfo    string
	IPAddress     string
	DistinctUsers int
	Usernames     []string
	SessionCount  int
	FirstSeen     time.Time
	LastSeen      time.Time
	Reason        string
}

// Analyzer derives statistics and advisory anomaly reports from the stored
// sessions. It never mutates session state.
type Analyzer struct {
	store   Store
	clock   Clock
	log     *slog.Logger
	metrics *Metrics
}

// NewAnalyzer constructs an Analyzer over store.
func NewAnalyzer(store Store, deps Deps) *Analyzer {
	deps = deps.withDefaults()
	return &Analyzer{store: store, clock: deps.Clock, log: deps.Log, metrics: deps.Metrics}
}

// Snapshot computes Stats over the full population at call time.
func (a *Analyzer) Snapshot(ctx context.Context) (Stats, error) {
	all, err := a.store.ListAll(ctx)
	if err != nil {
		return Stats{}, storageErr("list_all", err)
	}
	return computeStats(all, a.clock.Now()), nil
}

func computeStats(all []Session, now time.Time) Stats {
	st := Stats{Total: len(all), TakenAt: now}

	users := make(map[string]struct{})
	devices := make(map[string]struct{})
	soon := now.Add(expiringWindow)

	for _, s := range all {
		users[s.Username] = struct{}{}
		if s.DeviceInfo != "" {
			devices[s.DeviceInfo] = struct{}{}
		}

		if s.Usable(now) {
			st.Active++
			if !soon.Before(s.ExpiresAt) {
				st.ExpiringWithin24h++
			}
		}
		if s.Expired(now) {
			st.Expired++
		}
		if !s.Active {
			st.Revoked++
		}
	}

	st.Inactive = st.Total - st.Active
	st.UniqueUsers = len(users)
	st.UniqueDevices = len(devices)
	if st.UniqueUsers > 0 {
		st.AvgSessionsPerUser = float64(st.Total) / float64(st.UniqueUsers)
	}
	return st
}

// SuspiciousDevices groups all sessions by (DeviceInfo, IPAddress) and flags
// groups seen with more than one username.
//
// Sessions with an empty DeviceInfo are never grouped, not even with each
// other: users behind one NAT address without a device label are not flagged.
// The result is advisory: shared family or kiosk devices are expected.
func (a *Analyzer) SuspiciousDevices(ctx context.Context) ([]DeviceReport, error) {
	all, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, storageErr("list_all", err)
	}
	return findSharedDevices(all), nil
}

type deviceKey struct {
	device string
	ip     string
}

func findSharedDevices(all []Session) []DeviceReport {
	groups := make(map[deviceKey]*DeviceReport)
	names := make(map[deviceKey]map[string]struct{})

	for _, s := range all {
		if s.DeviceInfo == "" {
			continue
		}
		k := deviceKey{device: s.DeviceInfo, ip: s.IPAddress}

		g := groups[k]
		if g == nil {
			g = &DeviceReport{
				DeviceInfo: s.DeviceInfo,
				IPAddress:  s.IPAddress,
				FirstSeen:  s.CreatedAt,
				LastSeen:   s.lastActivity(),
			}
			groups[k] = g
			names[k] = make(map[string]struct{})
		}

		g.SessionCount++
		names[k][s.Username] = struct{}{}
		if s.CreatedAt.Before(g.FirstSeen) {
			g.FirstSeen = s.CreatedAt
		}
		if last := s.lastActivity(); last.After(g.LastSeen) {
			g.LastSeen = last
		}
	}

	out := make([]DeviceReport, 0)
	for k, g := range groups {
		if len(names[k]) < 2 {
			continue
		}
		g.DistinctUsers = len(names[k])
		g.Usernames = make([]string, 0, len(names[k]))
		for u := range names[k] {
			g.Usernames = append(g.Usernames, u)
		}
		sort.Strings(g.Usernames)
		g.Reason = ReasonSharedDevice
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistinctUsers != out[j].DistinctUsers {
			return out[i].DistinctUsers > out[j].DistinctUsers
		}
		if out[i].DeviceInfo != out[j].DeviceInfo {
			return out[i].DeviceInfo < out[j].DeviceInfo
		}
		return out[i].IPAddress < out[j].IPAddress
	})
	return out
}

// Report takes a snapshot and an anomaly scan, logs both and publishes them
// to metrics. It backs the periodic report job.
func (a *Analyzer) Report(ctx context.Context) error {
	all, err := a.store.ListAll(ctx)
	if err != nil {
		return storageErr("list_all", err)
	}

	st := computeStats(all, a.clock.Now())
	flagged := findSharedDevices(all)

	a.metrics.ObserveStats(st, len(flagged))
	a.log.Info("session.stats",
		"total", st.Total,
		"active", st.Active,
		"expired", st.Expired,
		"revoked", st.Revoked,
		"expiring_24h", st.ExpiringWithin24h,
		"users", st.UniqueUsers,
		"devices", st.UniqueDevices,
		"avg_per_user", st.AvgSessionsPerUser,
	)
	for _, d := range flagged {
		a.log.Warn("session.suspicious_device",
			"device", d.DeviceInfo,
			"ip", d.IPAddress,
			"users", d.DistinctUsers,
			"sessions", d.SessionCount,
			"first_seen", d.FirstSeen,
			"last_seen", d.LastSeen,
			"reason", d.Reason,
		)
	}
	return nil
}
