package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSnapshot_Empty(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	st, err := f.an.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	want := Stats{TakenAt: f.clock.Now()}
	if st != want {
		t.Fatalf("expected zero stats, got %+v", st)
	}
	if st.AvgSessionsPerUser != 0 {
		t.Fatalf("expected avg 0, got %v", st.AvgSessionsPerUser)
	}
}

func TestSnapshot_Counts(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SessionTTL = 48 * time.Hour
	f := newFixture(t, cfg)
	ctx := context.Background()

	// t0: expires at t0+48h.
	f.mustIssue(t, "ann", "desk")
	f.clock.Advance(30 * time.Hour)

	// t0+30h: all three expire at t0+78h.
	f.mustIssue(t, "ann", "phone")
	revoked := f.mustIssue(t, "ben", "desk")
	f.mustIssue(t, "cat", "")
	if err := f.svc.Revoke(ctx, revoked.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// t0+50h: the first session is expired, the live ones have 28h left.
	f.clock.Advance(20 * time.Hour)

	st, err := f.an.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if st.Total != 4 {
		t.Fatalf("total: %d", st.Total)
	}
	if st.Active != 2 {
		t.Fatalf("active: %d", st.Active)
	}
	if st.Expired != 1 {
		t.Fatalf("expired: %d", st.Expired)
	}
	if st.Revoked != 1 {
		t.Fatalf("revoked: %d", st.Revoked)
	}
	if st.ExpiringWithin24h != 0 {
		t.Fatalf("expiring within 24h: %d", st.ExpiringWithin24h)
	}
	if st.UniqueUsers != 3 {
		t.Fatalf("unique users: %d", st.UniqueUsers)
	}
	if st.UniqueDevices != 2 {
		t.Fatalf("unique devices: %d", st.UniqueDevices)
	}
	if want := 4.0 / 3.0; st.AvgSessionsPerUser != want {
		t.Fatalf("avg: %v want %v", st.AvgSessionsPerUser, want)
	}
	if st.Total != st.Active+st.Inactive {
		t.Fatalf("total %d != active %d + inactive %d", st.Total, st.Active, st.Inactive)
	}

	f.clock.Advance(5 * time.Hour) // 23h left on soon/later
	st, err = f.an.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if st.ExpiringWithin24h != 2 {
		t.Fatalf("expected 2 expiring within 24h, got %d", st.ExpiringWithin24h)
	}
}

func TestSnapshot_DoesNotMutate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	s := f.mustIssue(t, "dan", "")
	before := f.mustGet(t, s.ID)

	if _, err := f.an.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	after := f.mustGet(t, s.ID)
	if before.Active != after.Active || after.LastUsedAt != nil {
		t.Fatalf("snapshot mutated session: %+v", after)
	}
}

func TestSuspiciousDevices_SharedKiosk(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	ctx := context.Background()

	first := f.mustIssue(t, "dave", "kiosk-1")
	f.clock.Advance(time.Minute)
	f.mustIssue(t, "erin", "kiosk-1")
	f.clock.Advance(time.Minute)
	f.mustIssue(t, "dave", "kiosk-1")
	f.mustIssue(t, "dave", "own-laptop")

	f.clock.Advance(time.Minute)
	if !f.mustValidate(t, first.ID) {
		t.Fatalf("expected validate")
	}
	lastUse := f.clock.Now()

	reports, err := f.an.SuspiciousDevices(ctx)
	if err != nil {
		t.Fatalf("SuspiciousDevices: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %+v", reports)
	}

	r := reports[0]
	if r.DeviceInfo != "kiosk-1" || r.DistinctUsers != 2 || r.SessionCount != 3 {
		t.Fatalf("unexpected report: %+v", r)
	}
	if r.Reason != ReasonSharedDevice {
		t.Fatalf("unexpected reason: %q", r.Reason)
	}
	if len(r.Usernames) != 2 || r.Usernames[0] != "dave" || r.Usernames[1] != "erin" {
		t.Fatalf("unexpected usernames: %v", r.Usernames)
	}
	if !r.FirstSeen.Equal(first.CreatedAt) || !r.LastSeen.Equal(lastUse) {
		t.Fatalf("unexpected activity window: %v..%v", r.FirstSeen, r.LastSeen)
	}
}

func TestSuspiciousDevices_GroupsByDeviceAndIP(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	ctx := context.Background()

	for _, in := range []IssueRequest{
		{Username: "u1", DeviceInfo: "tv", IPAddress: "10.0.0.1"},
		{Username: "u2", DeviceInfo: "tv", IPAddress: "10.0.0.2"},
		{Username: "u1", IPAddress: "10.0.0.9"},
		{Username: "u2", IPAddress: "10.0.0.9"},
	} {
		if _, err := f.svc.Issue(ctx, in); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}

	reports, err := f.an.SuspiciousDevices(ctx)
	if err != nil {
		t.Fatalf("SuspiciousDevices: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports, got %+v", reports)
	}
}

func TestReport_PublishesAndSurvivesEmptyStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	if err := f.an.Report(context.Background()); err != nil {
		t.Fatalf("Report: %v", err)
	}

	broken := NewAnalyzer(brokenStore{NewMemoryStore()}, Deps{})
	if err := broken.Report(context.Background()); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestSuspiciousDevices_IgnoresMissingDeviceInfo(t *testing.T) {
	t.Parallel()

	f := newFixture(t, testConfig())
	ctx := context.Background()

	for _, name := range []string{"olga", "pete", "quinn"} {
		if _, err := f.svc.Issue(ctx, IssueRequest{Username: name, IPAddress: "198.51.100.4"}); err != nil {
			t.Fatalf("Issue: %v", err)
		}
	}
	if _, err := f.svc.Issue(ctx, IssueRequest{Username: "olga", DeviceInfo: "tablet", IPAddress: "198.51.100.4"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	reports, err := f.an.SuspiciousDevices(ctx)
	if err != nil {
		t.Fatalf("SuspiciousDevices: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected unlabeled sessions to be skipped, got %+v", reports)
	}
}
