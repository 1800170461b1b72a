package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pluginhub/pluginhub/internal/credentials"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeDiscoverer returns canned results and counts calls
type fakeDiscoverer struct {
	src      plugins.Source
	latest   []plugins.AvailablePlugin
	versions []plugins.AvailablePlugin
	err      error
	block    bool

	latestCalls   atomic.Int32
	versionsCalls atomic.Int32
	closed        atomic.Bool
}

func (d *fakeDiscoverer) Source() plugins.Source { return d.src }

func (d *fakeDiscoverer) DiscoverLatest(ctx context.Context) ([]plugins.AvailablePlugin, error) {
	d.latestCalls.Add(1)
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return d.latest, d.err
}

func (d *fakeDiscoverer) DiscoverAllVersions(ctx context.Context, _ plugins.Identity) ([]plugins.AvailablePlugin, error) {
	d.versionsCalls.Add(1)
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return d.versions, d.err
}

func (d *fakeDiscoverer) Close() error {
	d.closed.Store(true)
	return nil
}

// fakeAdapter supports every source whose scheme is in schemes
type fakeAdapter struct {
	*BaseSource
	schemes map[string]bool
	failOn  string

	mu           sync.Mutex
	created      []*fakeDiscoverer
	setupCalls   int
	supportCalls int
	build        func(src plugins.Source) *fakeDiscoverer
}

func newFakeAdapter(name string, schemes ...string) *fakeAdapter {
	a := &fakeAdapter{
		BaseSource: NewBaseSource(name, plugins.SourceTypeURI),
		schemes:    make(map[string]bool),
	}
	for _, s := range schemes {
		a.schemes[s] = true
	}
	return a
}

func (a *fakeAdapter) SetupCredentialService(providers []credentials.Provider) {
	a.mu.Lock()
	a.setupCalls++
	a.mu.Unlock()
	a.BaseSource.SetupCredentialService(providers)
}

func (a *fakeAdapter) IsSourceSupported(src plugins.Source) bool {
	a.mu.Lock()
	a.supportCalls++
	a.mu.Unlock()
	return a.schemes[src.Scheme()]
}

func (a *fakeAdapter) CreateDiscoverer(src plugins.Source) (Discoverer, error) {
	if !a.schemes[src.Scheme()] {
		return nil, Unsupported(a.Name(), src)
	}
	if a.failOn == src.Locator {
		return nil, errors.New("boom")
	}

	d := &fakeDiscoverer{src: src}
	if a.build != nil {
		d = a.build(src)
	}
	a.mu.Lock()
	a.created = append(a.created, d)
	a.mu.Unlock()
	return d, nil
}

func sources(t *testing.T, raw ...string) []plugins.Source {
	t.Helper()
	out, err := plugins.ParseSources(raw)
	if err != nil {
		t.Fatalf("failed to parse sources: %v", err)
	}
	return out
}

func plugin(id, version string) plugins.AvailablePlugin {
	return plugins.AvailablePlugin{Identity: plugins.NewIdentity(id, id), Version: version}
}

func TestManager_AssignsSourcesBySupport(t *testing.T) {
	fileAdapter := newFakeAdapter("file", "file")
	httpAdapter := newFakeAdapter("http", "http")
	m := NewManager([]DiscovererSource{fileAdapter, httpAdapter}, nil, WithLogger(quietLogger))

	if err := m.SetPluginSources(sources(t, "file:///x", "http://y", "http://z")); err != nil {
		t.Fatalf("SetPluginSources() error = %v", err)
	}

	if got := len(m.DiscoverersFor(fileAdapter)); got != 1 {
		t.Errorf("file adapter has %d discoverers, want 1", got)
	}
	if got := len(m.DiscoverersFor(httpAdapter)); got != 2 {
		t.Errorf("http adapter has %d discoverers, want 2", got)
	}
	if got := len(m.Discoverers()); got != 3 {
		t.Errorf("manager has %d discoverers, want 3", got)
	}

	bound := map[string]bool{}
	for _, d := range m.DiscoverersFor(httpAdapter) {
		bound[d.Source().Locator] = true
	}
	if !bound["http://y"] || !bound["http://z"] {
		t.Errorf("http adapter bound to %v, want http://y and http://z", bound)
	}
}

func TestManager_ReplacesAssignmentWholesale(t *testing.T) {
	adapter := newFakeAdapter("http", "http", "https")
	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))

	if err := m.SetPluginSources(sources(t, "http://a", "http://b")); err != nil {
		t.Fatal(err)
	}
	first := adapter.created

	if err := m.SetPluginSources(sources(t, "https://c", "ftp://d")); err != nil {
		t.Fatal(err)
	}

	got := m.DiscoverersFor(adapter)
	if len(got) != 1 || got[0].Source().Locator != "https://c" {
		t.Fatalf("expected only https://c to be bound, got %v", got)
	}
	for _, d := range first {
		if !d.closed.Load() {
			t.Errorf("discoverer for %s survived the source update", d.src)
		}
	}

	srcs := m.PluginSources()
	if len(srcs) != 2 {
		t.Errorf("expected 2 active sources, got %d", len(srcs))
	}
}

func TestManager_EndpointCountMatchesSupportedSources(t *testing.T) {
	tests := []struct {
		name    string
		sources []string
		want    int
	}{
		{"none supported", []string{"ftp://a", "s3://b"}, 0},
		{"some supported", []string{"http://a", "ftp://b", "http://c"}, 2},
		{"duplicates collapse", []string{"http://a", "HTTP://A", "http://a"}, 1},
		{"empty set", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newFakeAdapter("http", "http")
			m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))
			if err := m.SetPluginSources(sources(t, tt.sources...)); err != nil {
				t.Fatal(err)
			}
			got := m.DiscoverersFor(adapter)
			if got == nil {
				t.Fatal("adapter must always have an endpoint list")
			}
			if len(got) != tt.want {
				t.Errorf("got %d discoverers, want %d", len(got), tt.want)
			}
		})
	}
}

func TestManager_SourceSupportedByManyAdapters(t *testing.T) {
	a := newFakeAdapter("a", "http")
	b := newFakeAdapter("b", "http")
	m := NewManager([]DiscovererSource{a, b}, nil, WithLogger(quietLogger))

	if err := m.SetPluginSources(sources(t, "http://shared")); err != nil {
		t.Fatal(err)
	}
	if len(m.DiscoverersFor(a)) != 1 || len(m.DiscoverersFor(b)) != 1 {
		t.Errorf("expected one discoverer per supporting adapter")
	}
}

func TestManager_SkipsAdaptersOfOtherSourceTypes(t *testing.T) {
	other := newFakeAdapter("other", "http")
	other.BaseSource = NewBaseSource("other", plugins.SourceType("oci"))
	m := NewManager([]DiscovererSource{other}, nil, WithLogger(quietLogger))

	if err := m.SetPluginSources(sources(t, "http://a")); err != nil {
		t.Fatal(err)
	}
	if other.supportCalls != 0 {
		t.Errorf("adapter for another source type was consulted %d times", other.supportCalls)
	}
	if len(m.Discoverers()) != 0 {
		t.Errorf("expected no discoverers")
	}
}

func TestManager_FailedRecomputationKeepsPreviousAssignment(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))

	if err := m.SetPluginSources(sources(t, "http://good")); err != nil {
		t.Fatal(err)
	}
	original := m.Discoverers()

	adapter.failOn = "http://bad"
	err := m.SetPluginSources(sources(t, "http://other", "http://bad"))
	if err == nil {
		t.Fatal("expected recomputation to fail")
	}

	got := m.Discoverers()
	if len(got) != 1 || got[0] != original[0] {
		t.Errorf("previous assignment was not preserved: %v", got)
	}
	if srcs := m.PluginSources(); len(srcs) != 1 || srcs[0].Locator != "http://good" {
		t.Errorf("previous sources were not preserved: %v", srcs)
	}

	// the discoverer built before the failure must have been released
	for _, d := range adapter.created {
		if d.src.Locator == "http://other" && !d.closed.Load() {
			t.Error("discoverer created during failed recomputation was not closed")
		}
	}
}

func TestManager_SetupCredentialServiceOnce(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	provider := credentials.NewStaticProvider("static", map[string]credentials.Credential{
		"y": {Scheme: credentials.SchemeBearer, Token: "t"},
	})
	m := NewManager([]DiscovererSource{adapter}, []credentials.Provider{provider}, WithLogger(quietLogger))

	for i := 0; i < 3; i++ {
		if err := m.SetPluginSources(sources(t, "http://y")); err != nil {
			t.Fatal(err)
		}
	}
	if adapter.setupCalls != 1 {
		t.Errorf("SetupCredentialService called %d times, want 1", adapter.setupCalls)
	}
	if got := adapter.CredentialProvider(plugins.MustSource("http://y")); got != provider {
		t.Errorf("expected static provider to be bound, got %v", got)
	}
}

func TestManager_GetAvailablePluginsLatest(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	results := map[string][]plugins.AvailablePlugin{
		"http://a": {plugin("x", "1.0.0"), plugin("y", "2.0.0")},
		"http://b": {plugin("x", "1.0.0")},
		"http://c": nil,
	}
	adapter.build = func(src plugins.Source) *fakeDiscoverer {
		return &fakeDiscoverer{src: src, latest: results[src.Locator]}
	}

	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "http://a", "http://b", "http://c")); err != nil {
		t.Fatal(err)
	}

	got, err := m.GetAvailablePluginsLatest(context.Background())
	if err != nil {
		t.Fatalf("GetAvailablePluginsLatest() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 plugins (no dedup), got %d", len(got))
	}

	counts := map[string]int{}
	for _, p := range got {
		counts[p.Identity.ID]++
	}
	if counts["x"] != 2 || counts["y"] != 1 {
		t.Errorf("unexpected multiset %v", counts)
	}
}

func TestManager_GetAvailablePluginsLatest_PartialFailure(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	adapter.build = func(src plugins.Source) *fakeDiscoverer {
		if src.Locator == "http://broken" {
			return &fakeDiscoverer{src: src, err: errors.New("index unavailable")}
		}
		return &fakeDiscoverer{src: src, latest: []plugins.AvailablePlugin{plugin("x", "1.0.0")}}
	}

	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "http://ok", "http://broken")); err != nil {
		t.Fatal(err)
	}

	got, err := m.GetAvailablePluginsLatest(context.Background())
	var partialErr *PartialError
	if !errors.As(err, &partialErr) {
		t.Fatalf("expected *PartialError, got %v", err)
	}
	if len(partialErr.Failures) != 1 || partialErr.Failures[0].Source.Locator != "http://broken" {
		t.Errorf("unexpected failures %v", partialErr.Failures)
	}
	if len(got) != 1 {
		t.Errorf("expected results of healthy discoverers, got %d", len(got))
	}
}

func TestManager_GetAvailablePluginsLatest_Cancelled(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	adapter.build = func(src plugins.Source) *fakeDiscoverer {
		if src.Locator == "http://slow" {
			return &fakeDiscoverer{src: src, block: true}
		}
		return &fakeDiscoverer{src: src, latest: []plugins.AvailablePlugin{plugin("x", "1.0.0")}}
	}

	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "http://fast", "http://slow")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got, err := m.GetAvailablePluginsLatest(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got != nil {
		t.Errorf("partial results must be discarded on cancellation, got %v", got)
	}
}

func TestManager_GetAllVersionsOfPlugin_ShortCircuits(t *testing.T) {
	e1 := newFakeAdapter("e1", "e1")
	e2 := newFakeAdapter("e2", "e2")
	e3 := newFakeAdapter("e3", "e3")

	e2.build = func(src plugins.Source) *fakeDiscoverer {
		return &fakeDiscoverer{src: src, versions: []plugins.AvailablePlugin{plugin("p", "1.0.0"), plugin("p", "2.0.0")}}
	}
	e3.build = func(src plugins.Source) *fakeDiscoverer {
		return &fakeDiscoverer{src: src, versions: []plugins.AvailablePlugin{plugin("p", "3.0.0")}}
	}

	m := NewManager([]DiscovererSource{e1, e2, e3}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "e3://c", "e1://a", "e2://b")); err != nil {
		t.Fatal(err)
	}

	identity := plugins.NewIdentity("p", "P")
	got, err := m.GetAllVersionsOfPlugin(context.Background(), &identity)
	if err != nil {
		t.Fatalf("GetAllVersionsOfPlugin() error = %v", err)
	}
	if len(got) != 2 || got[0].Version != "1.0.0" || got[1].Version != "2.0.0" {
		t.Errorf("expected [1.0.0 2.0.0], got %v", got)
	}

	if e1.created[0].versionsCalls.Load() != 1 {
		t.Error("first discoverer was not queried")
	}
	if e3.created[0].versionsCalls.Load() != 0 {
		t.Error("discoverer after the first hit was queried")
	}
}

func TestManager_GetAllVersionsOfPlugin_NilIdentity(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "http://a")); err != nil {
		t.Fatal(err)
	}

	_, err := m.GetAllVersionsOfPlugin(context.Background(), nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if adapter.created[0].versionsCalls.Load() != 0 {
		t.Error("discoverer was touched before argument validation")
	}
}

func TestManager_GetAllVersionsOfPlugin_NoMatch(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "http://a", "http://b")); err != nil {
		t.Fatal(err)
	}

	identity := plugins.NewIdentity("missing", "")
	got, err := m.GetAllVersionsOfPlugin(context.Background(), &identity)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	for _, d := range adapter.created {
		if d.versionsCalls.Load() != 1 {
			t.Errorf("discoverer for %s queried %d times, want 1", d.src, d.versionsCalls.Load())
		}
	}
}

func TestManager_GetAllVersionsOfPlugin_SkipsFailingDiscoverer(t *testing.T) {
	first := newFakeAdapter("first", "first")
	second := newFakeAdapter("second", "second")
	first.build = func(src plugins.Source) *fakeDiscoverer {
		return &fakeDiscoverer{src: src, err: errors.New("timeout")}
	}
	second.build = func(src plugins.Source) *fakeDiscoverer {
		return &fakeDiscoverer{src: src, versions: []plugins.AvailablePlugin{plugin("p", "1.0.0")}}
	}

	m := NewManager([]DiscovererSource{first, second}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "first://a", "second://b")); err != nil {
		t.Fatal(err)
	}

	identity := plugins.NewIdentity("p", "")
	got, err := m.GetAllVersionsOfPlugin(context.Background(), &identity)
	var partialErr *PartialError
	if !errors.As(err, &partialErr) {
		t.Fatalf("expected *PartialError, got %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected result from second discoverer, got %v", got)
	}
}

func TestManager_GetAllVersionsOfPlugin_Cancelled(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	adapter.build = func(src plugins.Source) *fakeDiscoverer {
		return &fakeDiscoverer{src: src, block: true}
	}
	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "http://a", "http://b")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	identity := plugins.NewIdentity("p", "")
	_, err := m.GetAllVersionsOfPlugin(ctx, &identity)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if adapter.created[1].versionsCalls.Load() != 0 {
		t.Error("discoverer after cancellation was queried")
	}
}

func TestManager_Close(t *testing.T) {
	adapter := newFakeAdapter("http", "http")
	m := NewManager([]DiscovererSource{adapter}, nil, WithLogger(quietLogger))
	if err := m.SetPluginSources(sources(t, "http://a")); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if !adapter.created[0].closed.Load() {
		t.Error("discoverer was not closed")
	}
	if len(m.Discoverers()) != 0 || len(m.PluginSources()) != 0 {
		t.Error("manager still holds sources after Close")
	}
}
