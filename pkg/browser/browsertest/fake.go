// Package browsertest provides in-memory stand-ins for the Playwright
// objects a browser.Manager drives, so sessions can be exercised without
// a Chromium install.
//
// The fakes embed the playwright-go interfaces and override only the
// methods the manager and fetcher call; anything else panics.
package browsertest

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Element describes an element present on a fake page. Width and Height
// set the size of the PNG its screenshot produces.
type Element struct {
	Width  int
	Height int
}

// PageScript describes how a fake page behaves.
type PageScript struct {
	// Statuses is consumed one per Goto call; the last value repeats.
	// A value of 0 returns a nil response.
	Statuses []int

	// GotoErrs is consumed one per Goto call alongside Statuses.
	GotoErrs []error

	// HTML is returned by Content.
	HTML string

	// IdleErr is returned when waiting for the networkidle load state.
	IdleErr error

	// Elements maps selectors to elements that exist on the page.
	Elements map[string]Element
}

// Launcher records every browser it launches.
type Launcher struct {
	mu        sync.Mutex
	Script    PageScript
	LaunchErr error
	Browsers  []*Browser
	LastOpts  playwright.BrowserTypeLaunchOptions
}

// NewLauncher returns a launcher whose pages follow script.
func NewLauncher(script PageScript) *Launcher {
	return &Launcher{Script: script}
}

// Launch implements browser.Launcher.
func (l *Launcher) Launch(options ...playwright.BrowserTypeLaunchOptions) (playwright.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	if len(options) > 0 {
		l.LastOpts = options[0]
	}
	b := &Browser{script: l.Script, Events: &Events{}}
	l.Browsers = append(l.Browsers, b)
	return b, nil
}

// Launched returns how many browsers were started.
func (l *Launcher) Launched() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Browsers)
}

// AllClosed reports whether every launched browser, context and page was closed.
func (l *Launcher) AllClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.Browsers {
		if !b.Events.Has("browser.close") {
			return false
		}
		if b.context != nil && !b.Events.Has("context.close") {
			return false
		}
		if b.context != nil && b.context.page != nil && !b.Events.Has("page.close") {
			return false
		}
	}
	return true
}

// Events is an ordered log of lifecycle calls.
type Events struct {
	mu  sync.Mutex
	log []string
}

func (e *Events) add(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, name)
}

// List returns a copy of the recorded events.
func (e *Events) List() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

// Has reports whether name was recorded.
func (e *Events) Has(name string) bool {
	for _, ev := range e.List() {
		if ev == name {
			return true
		}
	}
	return false
}

// Browser is a fake playwright.Browser.
type Browser struct {
	playwright.Browser
	Events      *Events
	ContextOpts playwright.BrowserNewContextOptions
	CloseErr    error
	script      PageScript
	context     *Context
}

// NewContext implements playwright.Browser.
func (b *Browser) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	if len(options) > 0 {
		b.ContextOpts = options[0]
	}
	b.Events.add("context.new")
	b.context = &Context{events: b.Events, script: b.script}
	return b.context, nil
}

// Close implements playwright.Browser.
func (b *Browser) Close(options ...playwright.BrowserCloseOptions) error {
	b.Events.add("browser.close")
	return b.CloseErr
}

// Page returns the page opened in this browser, if any.
func (b *Browser) Page() *Page {
	if b.context == nil {
		return nil
	}
	return b.context.page
}

// InitScripts returns the init scripts registered on the context.
func (b *Browser) InitScripts() []string {
	if b.context == nil {
		return nil
	}
	return b.context.initScripts
}

// Context is a fake playwright.BrowserContext.
type Context struct {
	playwright.BrowserContext
	events      *Events
	script      PageScript
	initScripts []string
	page        *Page
}

// AddInitScript implements playwright.BrowserContext.
func (c *Context) AddInitScript(script playwright.Script) error {
	if script.Content != nil {
		c.initScripts = append(c.initScripts, *script.Content)
	}
	return nil
}

// NewPage implements playwright.BrowserContext.
func (c *Context) NewPage() (playwright.Page, error) {
	c.events.add("page.new")
	c.page = &Page{events: c.events, script: c.script}
	return c.page, nil
}

// Close implements playwright.BrowserContext.
func (c *Context) Close(options ...playwright.BrowserContextCloseOptions) error {
	c.events.add("context.close")
	return nil
}

// Page is a fake playwright.Page.
type Page struct {
	playwright.Page
	events         *Events
	script         PageScript
	gotoCalls      int
	url            string
	DefaultTimeout float64
	Evaluated      []string
	WaitUntils     []string
	LoadStates     []string
}

// Goto implements playwright.Page.
func (p *Page) Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error) {
	i := p.gotoCalls
	p.gotoCalls++
	p.events.add("page.goto")
	if len(options) > 0 && options[0].WaitUntil != nil {
		p.WaitUntils = append(p.WaitUntils, string(*options[0].WaitUntil))
	}

	if i < len(p.script.GotoErrs) && p.script.GotoErrs[i] != nil {
		return nil, p.script.GotoErrs[i]
	}

	p.url = url
	status := 200
	if n := len(p.script.Statuses); n > 0 {
		if i < n {
			status = p.script.Statuses[i]
		} else {
			status = p.script.Statuses[n-1]
		}
	}
	if status == 0 {
		return nil, nil
	}
	return &Response{status: status}, nil
}

// GotoCalls returns how many navigations were attempted.
func (p *Page) GotoCalls() int {
	return p.gotoCalls
}

// URL implements playwright.Page.
func (p *Page) URL() string {
	return p.url
}

// SetDefaultTimeout implements playwright.Page.
func (p *Page) SetDefaultTimeout(timeout float64) {
	p.DefaultTimeout = timeout
}

// WaitForLoadState implements playwright.Page.
func (p *Page) WaitForLoadState(options ...playwright.PageWaitForLoadStateOptions) error {
	state := "load"
	if len(options) > 0 && options[0].State != nil {
		state = string(*options[0].State)
	}
	p.LoadStates = append(p.LoadStates, state)
	if state == "networkidle" {
		return p.script.IdleErr
	}
	return nil
}

// Evaluate implements playwright.Page.
func (p *Page) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	p.Evaluated = append(p.Evaluated, expression)
	p.events.add("page.evaluate")
	return 0, nil
}

// Content implements playwright.Page.
func (p *Page) Content() (string, error) {
	return p.script.HTML, nil
}

// QuerySelector implements playwright.Page.
func (p *Page) QuerySelector(selector string, options ...playwright.PageQuerySelectorOptions) (playwright.ElementHandle, error) {
	el, ok := p.script.Elements[selector]
	if !ok {
		return nil, nil
	}
	return &ElementHandle{el: el}, nil
}

// WaitForSelector implements playwright.Page. Missing elements time out.
func (p *Page) WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	el, ok := p.script.Elements[selector]
	if !ok {
		return nil, errors.New("timeout waiting for " + selector)
	}
	return &ElementHandle{el: el}, nil
}

// Close implements playwright.Page.
func (p *Page) Close(options ...playwright.PageCloseOptions) error {
	p.events.add("page.close")
	return nil
}

// Response is a fake playwright.Response.
type Response struct {
	playwright.Response
	status int
}

// Status implements playwright.Response.
func (r *Response) Status() int {
	return r.status
}

// ElementHandle is a fake playwright.ElementHandle.
type ElementHandle struct {
	playwright.ElementHandle
	el Element
}

// Screenshot writes a solid PNG of the element's size to the requested path.
func (e *ElementHandle) Screenshot(options ...playwright.ElementHandleScreenshotOptions) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, e.el.Width, e.el.Height))
	for y := 0; y < e.el.Height; y++ {
		for x := 0; x < e.el.Width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}

	if len(options) > 0 && options[0].Path != nil {
		f, err := os.Create(*options[0].Path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// WritePNG writes a solid PNG of the given size. Tests use it to create
// region captures directly.
func WritePNG(path string, width, height int) error {
	_, err := (&ElementHandle{el: Element{Width: width, Height: height}}).Screenshot(
		playwright.ElementHandleScreenshotOptions{Path: playwright.String(path)},
	)
	return err
}
