package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/browser/browsertest"
	"github.com/21prnv/InfluenceIq/internal/config"
	"github.com/21prnv/InfluenceIq/internal/diagnostics"
	"github.com/21prnv/InfluenceIq/internal/engine"
	"github.com/21prnv/InfluenceIq/internal/proxy"
	"github.com/21prnv/InfluenceIq/internal/sink"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) != "" {
		os.Exit(helperWorker(os.Args))
	}
	goleak.VerifyTestMain(m)
}

const (
	base       = "https://www.instagram.com"
	profileURL = base + "/nasa/"
	reelsURL   = base + "/nasa/reels/"
)

const profilePage = `<html><body><main><header><section><h1>NASA</h1>
<span>Exploring the universe</span></section></header></main></body></html>`

func site(items int) *browsertest.Page {
	p := browsertest.NewPage()
	p.Serve(profileURL, browsertest.Route{HTML: profilePage})
	var reels strings.Builder
	for i := 0; i < items; i++ {
		fmt.Fprintf(&reels, `<a href="/nasa/reel/r%d/">reel</a>`, i)
		p.Serve(fmt.Sprintf("%s/reel/r%d/", base, i), browsertest.Route{
			HTML: fmt.Sprintf(`<article><div class="_a9zs">caption %d</div></article>`, i),
		})
	}
	p.Serve(reelsURL, browsertest.Route{HTML: "<main>" + reels.String() + "</main>"})
	return p
}

type keeper struct {
	ready func(ctx context.Context, page browser.Page) error
}

func (k keeper) Ready(ctx context.Context, page browser.Page) error {
	if k.ready != nil {
		return k.ready(ctx, page)
	}
	return nil
}

func (k keeper) Renew(ctx context.Context, page browser.Page) error { return nil }

func newUnit(t *testing.T, page *browsertest.Page) (*Unit, *browsertest.Launcher) {
	t.Helper()
	l := &browsertest.Launcher{Page: page}
	return &Unit{
		Launcher: l,
		Sessions: keeper{},
		Navigation: engine.Options{
			BaseURL:            base,
			StepTimeout:        time.Minute,
			ItemTimeout:        time.Minute,
			ProfileWaitTimeout: time.Second,
			ScrollIterations:   1,
			MaxMediaItems:      5,
			MaxComments:        10,
			WallMarkers:        config.DefaultWallMarkers,
		},
		Capturer: diagnostics.NewCapturer(filepath.Join(t.TempDir(), "debug")),
		Headless: true,
	}, l
}

func newJob(t *testing.T) Job {
	return Job{Account: "nasa", RunID: "run-1", Output: sink.Path(t.TempDir(), "nasa")}
}

func TestExecute_HappyPath(t *testing.T) {
	u, l := newUnit(t, site(3))
	job := newJob(t)

	result, code := Execute(context.Background(), u, job, time.Minute)
	assert.Equal(t, 0, code)
	require.False(t, result.Failed())
	assert.Equal(t, "NASA", result.Profile.DisplayName)
	require.Len(t, result.Media, 3)
	for i, m := range result.Media {
		assert.Equal(t, fmt.Sprintf("%s/reel/r%d/", base, i), m.URL)
	}
	assert.Equal(t, "run-1", result.RunID)

	written, err := sink.Read(job.Output)
	require.NoError(t, err)
	assert.Equal(t, result.Profile, written.Profile)

	require.Len(t, l.Handles(), 1)
	assert.True(t, l.Handles()[0].Closed())
	assert.True(t, l.Options()[0].Headless)
}

func TestExecute_LoginWallCapturesDiagnostics(t *testing.T) {
	page := site(1)
	page.Serve(profileURL, browsertest.Route{Redirect: base + "/accounts/login/?next=/nasa/"})
	u, l := newUnit(t, page)
	job := newJob(t)

	result, code := Execute(context.Background(), u, job, time.Minute)
	assert.Equal(t, 3, code)
	require.True(t, result.Failed())
	assert.Equal(t, "LoginWallDetected", result.Error.Kind)
	assert.Nil(t, result.Profile)

	d := result.Error.Diagnostics
	require.NotNil(t, d)
	for _, path := range []string{d.HTML, d.Screenshot, d.Markdown} {
		assert.FileExists(t, path)
	}
	assert.Equal(t, diagnostics.HTMLFile, filepath.Base(d.HTML))
	assert.True(t, l.Handles()[0].Closed())

	written, err := sink.Read(job.Output)
	require.NoError(t, err)
	assert.Equal(t, "LoginWallDetected", written.Error.Kind)
}

func TestExecute_DiagnosticsUnavailable(t *testing.T) {
	page := site(1)
	page.Serve(profileURL, browsertest.Route{Redirect: base + "/accounts/login/?next=/nasa/"})
	u, _ := newUnit(t, page)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	u.Capturer = diagnostics.NewCapturer(filepath.Join(blocker, "debug"))
	job := newJob(t)

	result, code := Execute(context.Background(), u, job, time.Minute)
	assert.Equal(t, 3, code)
	require.True(t, result.Failed())
	assert.Equal(t, "LoginWallDetected", result.Error.Kind)
	assert.Nil(t, result.Error.Diagnostics)
}

func TestExecute_ProxyIsPassedToBrowser(t *testing.T) {
	u, l := newUnit(t, site(0))
	job := newJob(t)
	job.Proxy = "http://p1:8080"

	_, code := Execute(context.Background(), u, job, time.Minute)
	assert.Equal(t, 0, code)
	assert.Equal(t, "http://p1:8080", l.Options()[0].Proxy)
}

func TestExecute_PersistenceFailure(t *testing.T) {
	u, _ := newUnit(t, site(0))
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	job := newJob(t)
	job.Output = filepath.Join(blocker, "nasa_data.json")

	_, code := Execute(context.Background(), u, job, time.Minute)
	assert.Equal(t, 4, code)
}

func TestUnit_LaunchFailure(t *testing.T) {
	u, l := newUnit(t, site(0))
	l.Err = errors.New("chrome not found")

	result := u.Run(context.Background(), newJob(t))
	require.True(t, result.Failed())
	assert.Equal(t, "InternalError", result.Error.Kind)
	assert.Nil(t, result.Error.Diagnostics)
	assert.NoError(t, result.Validate())
}

func TestUnit_PanicReleasesHandle(t *testing.T) {
	u, l := newUnit(t, site(0))
	u.Sessions = keeper{ready: func(context.Context, browser.Page) error { panic("boom") }}

	result := u.Run(context.Background(), newJob(t))
	require.True(t, result.Failed())
	assert.Equal(t, "InternalError", result.Error.Kind)
	assert.Contains(t, result.Error.Message, "boom")
	assert.NotNil(t, result.Error.Diagnostics)
	assert.True(t, l.Handles()[0].Closed())
}

func TestInProcess_BudgetExceeded(t *testing.T) {
	page := site(1)
	page.Serve(profileURL, browsertest.Route{Block: true})
	u, l := newUnit(t, page)
	job := newJob(t)

	iso := &InProcess{Unit: *u, Grace: time.Second}
	start := time.Now()
	result := iso.Run(context.Background(), job, 100*time.Millisecond)

	assert.Less(t, time.Since(start), time.Second)
	require.True(t, result.Failed())
	assert.Equal(t, "WorkerTimeout", result.Error.Kind)
	assert.NotNil(t, result.Error.Diagnostics, "the unit recorded its own timeout")
	assert.Equal(t, 2, engine.ExitCode(engine.Kind(result.Error.Kind)))
	assert.True(t, l.Handles()[0].Closed())

	written, err := sink.Read(job.Output)
	require.NoError(t, err)
	assert.Equal(t, "WorkerTimeout", written.Error.Kind)
}

func TestInProcess_WedgedUnitIsReleased(t *testing.T) {
	u, l := newUnit(t, site(1))
	// Ignores its context; only releasing the browser unblocks it.
	u.Sessions = keeper{ready: func(_ context.Context, page browser.Page) error {
		return page.WaitVisible(context.Background(), "#never")
	}}

	iso := &InProcess{Unit: *u, Grace: 50 * time.Millisecond}
	result := iso.Run(context.Background(), newJob(t), 50*time.Millisecond)

	require.True(t, result.Failed())
	assert.Equal(t, "WorkerTimeout", result.Error.Kind)
	assert.Contains(t, result.Error.Message, "budget")
	assert.True(t, l.Handles()[0].Closed())
}

type scripted struct {
	mu      sync.Mutex
	jobs    []Job
	kinds   map[string]string
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (s *scripted) Run(ctx context.Context, job Job, budget time.Duration) *models.ScrapeResult {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	kind := s.kinds[job.Account]
	s.mu.Unlock()

	if kind != "" {
		return models.NewFailure(job.Account, job.RunID, kind, "scripted", time.Now())
	}
	return &models.ScrapeResult{Account: job.Account, RunID: job.RunID, Profile: &models.ProfileRecord{Username: job.Account}}
}

func TestSupervisor_RotatesAwayFromBlockedProxy(t *testing.T) {
	iso := &scripted{kinds: map[string]string{"blocked": "PlatformBlocked", "missing": "ProfileNotFound"}}
	s := &Supervisor{
		Isolation: iso,
		OutputDir: t.TempDir(),
		Budget:    time.Minute,
		Proxies:   proxy.NewPool([]string{"p1", "p2"}, time.Hour),
	}

	s.Run(context.Background(), "blocked") // p1, burned
	s.Run(context.Background(), "missing") // p2, not the proxy's fault
	s.Run(context.Background(), "ok")

	require.Len(t, iso.jobs, 3)
	assert.Equal(t, "p1", iso.jobs[0].Proxy)
	assert.Equal(t, "p2", iso.jobs[1].Proxy)
	assert.Equal(t, "p2", iso.jobs[2].Proxy)
	assert.NotEqual(t, iso.jobs[0].RunID, iso.jobs[1].RunID)
	assert.Equal(t, sink.Path(s.OutputDir, "ok"), iso.jobs[2].Output)
}

func TestSupervisor_RunAll(t *testing.T) {
	iso := &scripted{kinds: map[string]string{"b": "LoginWallDetected"}}
	s := &Supervisor{Isolation: iso, OutputDir: t.TempDir(), Budget: time.Minute}

	accounts := []string{"a", "b", "c", "d", "e"}
	results := s.RunAll(context.Background(), accounts, 2)

	require.Len(t, results, len(accounts))
	for i, r := range results {
		assert.Equal(t, accounts[i], r.Account)
	}
	assert.True(t, results[1].Failed())
	assert.LessOrEqual(t, iso.maxSeen.Load(), int32(2))
}
