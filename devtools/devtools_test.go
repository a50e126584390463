package devtools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedp/chainrun"
	"github.com/chromedp/chainrun/device"
)

// pool is set when CHAINRUN_TEST_CHROME names a Chrome binary.
var pool *Pool

func TestMain(m *testing.M) {
	if execPath := os.Getenv("CHAINRUN_TEST_CHROME"); execPath != "" {
		var err error
		pool, err = NewPool(context.Background(), ExecPath(execPath))
		if err != nil {
			panic(err)
		}
	}
	code := m.Run()
	if pool != nil {
		_ = pool.Shutdown()
	}
	os.Exit(code)
}

func testBrowser(t *testing.T, page string) (*Browser, string) {
	t.Helper()
	if pool == nil {
		t.Skip("CHAINRUN_TEST_CHROME is not set")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)
	r, err := pool.Allocate(context.Background())
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r.Browser(), srv.URL
}

func TestParseRemoteObject(t *testing.T) {
	t.Parallel()

	var v interface{}
	require.NoError(t, parseRemoteObject(&runtime.RemoteObject{Type: "undefined"}, &v))
	assert.Nil(t, v)

	var box [4]float64
	require.NoError(t, parseRemoteObject(&runtime.RemoteObject{Type: "object", Value: []byte(`[1,2,3,4]`)}, &box))
	assert.Equal(t, [4]float64{1, 2, 3, 4}, box)

	var n int
	assert.Error(t, parseRemoteObject(&runtime.RemoteObject{Type: "undefined"}, &n))

	obj := &runtime.RemoteObject{ObjectID: "1"}
	var ref *runtime.RemoteObject
	require.NoError(t, parseRemoteObject(obj, &ref))
	assert.Same(t, obj, ref)
}

func TestPoolOptions(t *testing.T) {
	t.Parallel()

	p := &Pool{}
	require.NoError(t, RemoteURL("ws://127.0.0.1:9222")(p))
	require.NoError(t, Headless(false)(p))
	require.NoError(t, WindowSize(800, 600)(p))
	assert.Equal(t, "ws://127.0.0.1:9222", p.remote)
	assert.False(t, p.headless)
	assert.Equal(t, 800, p.width)
	assert.Error(t, WindowSize(0, 600)(p))
}

const testPage = `<!doctype html>
<html><head><title>devtools</title></head>
<body>
  <input id="name" value="ab">
  <ul><li>a</li><li class="x">b</li></ul>
  <div id="gone" style="display:none">gone</div>
  <button id="btn" onclick="this.textContent='clicked'">click</button>
</body></html>`

func TestBrowser(t *testing.T) {
	b, u := testBrowser(t, testPage)
	ctx := context.Background()
	require.NoError(t, b.Navigate(ctx, u))

	title, err := b.ReadProperty(ctx, chainrun.DocumentNode, chainrun.PropTitle)
	require.NoError(t, err)
	assert.Equal(t, "devtools", title)

	items, err := b.QueryAll(ctx, chainrun.DocumentNode, chainrun.Query{Selector: "li"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	next, err := b.QueryAll(ctx, items[0], chainrun.Query{Relation: chainrun.NextSibling})
	require.NoError(t, err)
	assert.Equal(t, items[1:], next)

	_, err = b.QueryAll(ctx, chainrun.DocumentNode, chainrun.Query{Selector: "li["})
	assert.ErrorIs(t, err, chainrun.ErrInvalidSelector)

	gone, err := b.QueryAll(ctx, chainrun.DocumentNode, chainrun.Query{Selector: "#gone"})
	require.NoError(t, err)
	rendered, err := b.ReadProperty(ctx, gone[0], chainrun.PropRendered)
	require.NoError(t, err)
	assert.Equal(t, false, rendered)

	_, err = b.ReadProperty(ctx, gone[0], "noSuchProperty")
	assert.ErrorIs(t, err, chainrun.ErrNoProperty)

	btn, err := b.QueryAll(ctx, chainrun.DocumentNode, chainrun.Query{Selector: "#btn"})
	require.NoError(t, err)
	box, err := b.BoundingBox(ctx, btn[0])
	require.NoError(t, err)
	x, y := box.X+box.Width/2, box.Y+box.Height/2
	for _, ev := range chainrun.MouseClickXY(x, y, 1) {
		require.NoError(t, b.DispatchEvent(ctx, btn[0], ev))
	}
	text, err := b.ReadProperty(ctx, btn[0], chainrun.PropTextContent)
	require.NoError(t, err)
	assert.Equal(t, "clicked", text)

	hit, err := b.ElementAt(ctx, x, y)
	require.NoError(t, err)
	assert.Equal(t, btn[0], hit)
}

const formPage = `<!doctype html>
<html><head><title>forms</title></head>
<body>
  <form id="sent" action="/done"><input name="q" value="x"></form>
  <form id="kept" action="/never" onsubmit="event.preventDefault(); this.dataset.seen = 'yes'"></form>
</body></html>`

func TestSubmitRunsDefaultAction(t *testing.T) {
	b, u := testBrowser(t, formPage)
	ctx := context.Background()
	require.NoError(t, b.Navigate(ctx, u))

	kept, err := b.QueryAll(ctx, chainrun.DocumentNode, chainrun.Query{Selector: "#kept"})
	require.NoError(t, err)
	require.NoError(t, b.DispatchEvent(ctx, kept[0], chainrun.Event{Type: chainrun.SubmitEvent}))
	seen, ok, err := b.Attribute(ctx, kept[0], "data-seen")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "yes", seen)

	sent, err := b.QueryAll(ctx, chainrun.DocumentNode, chainrun.Query{Selector: "#sent"})
	require.NoError(t, err)
	require.NoError(t, b.DispatchEvent(ctx, sent[0], chainrun.Event{Type: chainrun.SubmitEvent}))
	assert.Eventually(t, func() bool {
		loc, err := b.ReadProperty(ctx, chainrun.WindowNode, "location")
		s, _ := loc.(string)
		return err == nil && strings.HasSuffix(s, "/done?q=x")
	}, 5*time.Second, 50*time.Millisecond)
}

func TestViewportEmulatesTouch(t *testing.T) {
	b, u := testBrowser(t, testPage)
	ctx := context.Background()
	require.NoError(t, b.Navigate(ctx, u))

	phone, err := device.Lookup("iphone-6", "landscape")
	require.NoError(t, err)
	require.NoError(t, b.SetViewport(ctx, phone))
	for name, want := range map[string]interface{}{"innerWidth": 667.0, "maxTouchPoints": 1.0} {
		v, err := b.ReadProperty(ctx, chainrun.WindowNode, name)
		require.NoError(t, err)
		assert.Equal(t, want, v, name)
	}
}
