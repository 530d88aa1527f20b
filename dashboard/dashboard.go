package dashboard

import (
	"crypto/rand"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	txtTemplate "text/template"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leekchan/gtf"

	"github.com/meshpage/meshpage/api/httpapi"
	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/mgr"
	"github.com/meshpage/meshpage/storage"
)

var (
	//go:embed assets
	assetsFS embed.FS

	//go:embed views
	templateFS embed.FS
)

// Dashboard is a dashboard user interface.
type Dashboard struct {
	mgr      *mgr.Manager
	instance instance

	assetServer http.Handler
	assetsEtag  string

	tokenSecret []byte

	htmlTemplates map[string]*template.Template
	txtTemplates  *txtTemplate.Template
	templatesLock sync.RWMutex

	upgrader websocket.Upgrader
}

// instance is an interface subset of inst.Ance.
type instance interface {
	Version() string
	Config() *config.Config
	Storage() storage.Storage
	API() *httpapi.API
	Modules() []string
	GetAlerts() []mgr.AlertUpdate
}

// New adds a dashboard to the given instance.
func New(instance instance) (*Dashboard, error) {
	d := &Dashboard{
		mgr:         mgr.New("dashboard"),
		instance:    instance,
		assetServer: http.FileServerFS(assetsFS),
		assetsEtag:  fmt.Sprintf(`"%x"`, instance.Config().Started().UnixNano()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origin is checked by the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	d.registerRoutes()

	// Generate token secret.
	d.tokenSecret = make([]byte, tokenSecretSize)
	_, err := rand.Read(d.tokenSecret)
	if err != nil {
		return nil, fmt.Errorf("generate token secret: %w", err)
	}

	// Load templates from embedded data.
	err = d.loadTemplates(templateFS)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	return d, nil
}

// Manager returns the module's manager.
func (d *Dashboard) Manager() *mgr.Manager {
	return d.mgr
}

// Start starts the dashboard.
func (d *Dashboard) Start() error {
	return nil
}

// Stop stops the dashboard and closes all live filter sessions.
func (d *Dashboard) Stop() error {
	d.mgr.Cancel()
	if !d.mgr.WaitForWorkers(5 * time.Second) {
		d.mgr.Warn("live filter sessions did not stop in time")
	}
	return nil
}

func (d *Dashboard) registerRoutes() {
	d.instance.API().HandleFunc("/assets/", d.serveAssets)

	d.registerViews()
}

func (d *Dashboard) serveAssets(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "public, max-age=10")
	w.Header().Add("Etag", d.assetsEtag)
	if r.Header.Get("If-None-Match") == d.assetsEtag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	d.assetServer.ServeHTTP(w, r)
}

func (d *Dashboard) loadTemplates(baseFS fs.FS) error {
	// Load html templates.
	includeTemplates, err := template.New("").Funcs(gtf.GtfFuncMap).ParseFS(baseFS, "views/include/*.html")
	if err != nil {
		return fmt.Errorf("load include templates: %w", err)
	}
	// Parse every page template together with the includes.
	views, err := fs.ReadDir(baseFS, "views")
	if err != nil {
		return fmt.Errorf("load page names: %w", err)
	}
	htmlTemplates := make(map[string]*template.Template)
	for _, view := range views {
		if view.IsDir() || !strings.HasSuffix(view.Name(), ".html") {
			continue
		}
		cloned, err := includeTemplates.Clone()
		if err != nil {
			return fmt.Errorf("clone include templates: %w", err)
		}
		pageTmpl, err := cloned.ParseFS(baseFS, path.Join("views", view.Name()))
		if err != nil {
			return fmt.Errorf("parse page %s template: %w", view.Name(), err)
		}
		htmlTemplates[view.Name()] = pageTmpl
	}

	// Load txt templates.
	txtTemplates, err := txtTemplate.New("").Funcs(gtf.GtfFuncMap).ParseFS(baseFS, "views/*.txt")
	if err != nil {
		return fmt.Errorf("load txt templates: %w", err)
	}

	d.templatesLock.Lock()
	defer d.templatesLock.Unlock()

	d.htmlTemplates = htmlTemplates
	d.txtTemplates = txtTemplates
	return nil
}

type renderingData struct {
	Version  string
	Hostname string
	Started  time.Time
	Uptime   time.Duration
	Title    string
	Page     any
}

var (
	html  = "html"
	plain = "plain"
)

// contentType returns the content type to respond with.
// Browsers get html, terminals get plain text.
func contentType(r *http.Request) string {
	accept := r.Header.Get("Accept")
	userAgent := strings.ToLower(r.Header.Get("User-Agent"))
	switch {
	case strings.Contains(accept, "text/html"):
		return html
	case strings.Contains(accept, "text/plain"):
		return plain
	case strings.Contains(userAgent, "curl"), strings.Contains(userAgent, "wget"):
		return plain
	default:
		return html
	}
}

func (d *Dashboard) render(w http.ResponseWriter, r *http.Request, templateName, title string, data any) {
	var err error

	// Build render data set.
	hostname, _ := os.Hostname()
	renderData := &renderingData{
		Version:  d.instance.Version(),
		Hostname: hostname,
		Started:  d.instance.Config().Started(),
		Uptime:   d.instance.Config().Uptime().Round(time.Second),
		Title:    title,
		Page:     data,
	}

	// Reload templates in dev mode.
	if d.instance.Config().DevMode() {
		err := d.loadTemplates(os.DirFS("dashboard"))
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to load templates: %s", err), http.StatusInternalServerError)
			return
		}
	}

	d.templatesLock.RLock()
	defer d.templatesLock.RUnlock()

	// Set content type and render.
	ct := contentType(r)
	w.Header().Set("Content-Type", "text/"+ct+"; charset=utf-8")
	w.Header().Add("Vary", "Accept")
	switch ct {
	case plain:
		templateName += ".txt"
		err = d.txtTemplates.ExecuteTemplate(w, templateName, renderData)
	case html:
		fallthrough
	default:
		templateName += ".html"
		tmpl, ok := d.htmlTemplates[templateName]
		if ok {
			err = tmpl.ExecuteTemplate(w, templateName, renderData)
		} else {
			err = fmt.Errorf("template %q not found", templateName)
		}
	}

	// Log render error.
	if err != nil {
		d.mgr.Error(
			"failed to render",
			"template", templateName,
			"err", err,
		)
	}
}
