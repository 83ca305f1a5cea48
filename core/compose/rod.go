package compose

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"math"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/gaurav-prasanna/policypipe/core"
)

// RodConfig configures the headless Chrome rasterizer.
type RodConfig struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL   string        `yaml:"remote_url"`
	DeviceScale float64       `yaml:"device_scale"`
	Quality     int           `yaml:"jpeg_quality"`
	Timeout     time.Duration `yaml:"timeout"`
	NoSandbox   bool          `yaml:"no_sandbox"`
}

func (c *RodConfig) defaults() {
	if c.DeviceScale <= 0 {
		c.DeviceScale = 2
	}
	if c.Quality <= 0 || c.Quality > 100 {
		c.Quality = 92
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}

// RodRasterizer renders HTML in an off-screen Chrome tab and captures one
// JPEG per page. The browser is started lazily and shared; every
// Rasterize call gets its own tab, closed on every path.
type RodRasterizer struct {
	cfg RodConfig
	log zerolog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewRodRasterizer creates a rasterizer. Chrome is not started until the
// first Rasterize call.
func NewRodRasterizer(cfg RodConfig, log zerolog.Logger) *RodRasterizer {
	cfg.defaults()
	return &RodRasterizer{cfg: cfg, log: log}
}

func (r *RodRasterizer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL := r.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).NoSandbox(r.cfg.NoSandbox)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching chrome: %w", err)
		}
		wsURL = u
		r.lnch = l
		r.log.Info().Str("url", wsURL).Msg("launched local chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}
	r.browser = b
	return b, nil
}

// Close shuts the browser down.
func (r *RodRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return err
}

// Rasterize loads html into a fresh tab sized to the body width, waits for
// fonts and images, pushes break-avoiding elements past page boundaries,
// and screenshots the document one body-height slice at a time.
func (r *RodRasterizer) Rasterize(ctx context.Context, html string, layout core.Layout) (*Rasterization, error) {
	b, err := r.connect()
	if err != nil {
		return nil, err
	}

	tab, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			r.log.Warn().Err(cerr).Msg("closing rasterizer tab")
		}
	}()
	page := tab.Context(ctx).Timeout(r.cfg.Timeout)

	widthPx := core.MMToCSSPx(layout.ContentWidthMM())
	pageHeightPx := core.MMToCSSPx(layout.ContentHeightMM())

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             int(math.Ceil(widthPx)),
		Height:            int(math.Ceil(pageHeightPx)),
		DeviceScaleFactor: r.cfg.DeviceScale,
	})
	if err != nil {
		return nil, fmt.Errorf("setting viewport: %w", err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	if _, err := page.Eval(awaitAssetsJS); err != nil {
		return nil, fmt.Errorf("waiting for fonts and images: %w", err)
	}

	res, err := page.Eval(paginateJS, pageHeightPx)
	if err != nil {
		return nil, fmt.Errorf("paginating: %w", err)
	}
	top := res.Value.Get("top").Num()
	height := res.Value.Get("height").Num()
	count := int(math.Ceil(height / pageHeightPx))
	if count < 1 {
		count = 1
	}

	out := &Rasterization{Reported: count}
	quality := r.cfg.Quality
	for i := 0; i < count; i++ {
		data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: &quality,
			Clip: &proto.PageViewport{
				X:      0,
				Y:      top + float64(i)*pageHeightPx,
				Width:  widthPx,
				Height: pageHeightPx,
				Scale:  1,
			},
			CaptureBeyondViewport: true,
		})
		if err != nil {
			return nil, fmt.Errorf("capturing page %d: %w", i+1, err)
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding page %d: %w", i+1, err)
		}
		out.Pages = append(out.Pages, Page{
			RenderedPage: core.RenderedPage{
				PageIndex: i,
				WidthPx:   cfg.Width,
				HeightPx:  cfg.Height,
			},
			JPEG: data,
		})
	}
	r.log.Debug().Int("pages", count).Float64("height_px", height).Msg("rasterized document")
	return out, nil
}

const awaitAssetsJS = `() => Promise.all([
	document.fonts ? document.fonts.ready : Promise.resolve(),
	...Array.from(document.images).map(img => img.complete ? Promise.resolve() :
		new Promise(done => {
			img.addEventListener('load', done, {once: true});
			img.addEventListener('error', done, {once: true});
		})),
]).then(() => true)`

// paginateJS inserts spacers in front of headings (kept with the start of
// the next block), tables, rows, list items and images that would straddle
// a page boundary and fit on one page. Returns the body's top offset and
// final height.
const paginateJS = `(pageH) => {
	const root = document.querySelector('.doc-body') || document.body;
	const top0 = root.getBoundingClientRect().top + window.scrollY;
	const pos = el => {
		const r = el.getBoundingClientRect();
		return {top: r.top + window.scrollY - top0, height: r.height};
	};
	const spacer = (el, h) => {
		if (el.tagName === 'TR') {
			const tr = document.createElement('tr');
			tr.className = 'pp-break';
			const td = document.createElement('td');
			td.colSpan = 99;
			td.style.cssText = 'border:none;padding:0;height:' + h + 'px';
			tr.appendChild(td);
			el.parentNode.insertBefore(tr, el);
			return;
		}
		const d = document.createElement('div');
		d.className = 'pp-break';
		d.style.height = h + 'px';
		el.parentNode.insertBefore(d, el);
	};
	for (const el of root.querySelectorAll('h1,h2,h3,h4,h5,h6,table,tr,li,img')) {
		const p = pos(el);
		let h = p.height;
		if (/^H[1-6]$/.test(el.tagName) && el.nextElementSibling) {
			h += Math.min(pos(el.nextElementSibling).height, pageH / 4);
		}
		if (h <= 0 || h >= pageH) continue;
		const first = Math.floor(p.top / pageH);
		const last = Math.floor((p.top + h - 0.5) / pageH);
		if (first !== last) spacer(el, (first + 1) * pageH - p.top);
	}
	return {top: top0, height: root.getBoundingClientRect().height};
}`
