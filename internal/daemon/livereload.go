package daemon

import (
	"bufio"
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"git.arenberg.net/steen/sitebuilder/internal/logfields"
)

const heartbeatInterval = 30 * time.Second

// ReloadHub fans successful build IDs out to connected browsers over
// SSE. Clients reload when the ID changes.
type ReloadHub struct {
	mu      sync.Mutex
	nextID  int
	clients map[int]*reloadClient
	lastID  string
	closed  bool
	logger  *slog.Logger
}

// reloadClient is one connected browser. The data channel is never
// closed; drop signals departure through done instead, so a broadcast
// racing a disconnect can only land in a buffer nobody reads.
type reloadClient struct {
	ch   chan string
	done chan struct{}
}

// NewReloadHub returns an empty hub.
func NewReloadHub(logger *slog.Logger) *ReloadHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadHub{clients: map[int]*reloadClient{}, logger: logger}
}

// ServeHTTP is the SSE endpoint.
func (h *ReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	id := h.nextID
	h.nextID++
	client := &reloadClient{ch: make(chan string, 8), done: make(chan struct{})}
	h.clients[id] = client
	last := h.lastID
	h.mu.Unlock()
	defer h.drop(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(": connected\n\n"); err != nil {
		return
	}
	if last != "" {
		if _, err := bw.WriteString("data: " + last + "\n\n"); err != nil {
			return
		}
	}
	if bw.Flush() == nil {
		flusher.Flush()
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil {
				return
			}
		case buildID := <-client.ch:
			if _, err := bw.WriteString("data: " + buildID + "\n\n"); err != nil {
				return
			}
		}
		if bw.Flush() != nil {
			return
		}
		flusher.Flush()
	}
}

// Broadcast pushes a build ID to every client. Clients too slow to
// drain their channel are dropped. Sending into a dropped client's
// channel is harmless because data channels stay open for their
// lifetime.
func (h *ReloadHub) Broadcast(buildID string) {
	h.mu.Lock()
	if h.closed || buildID == "" || buildID == h.lastID {
		h.mu.Unlock()
		return
	}
	h.lastID = buildID
	type target struct {
		id     int
		client *reloadClient
	}
	snapshot := make([]target, 0, len(h.clients))
	for id, c := range h.clients {
		snapshot = append(snapshot, target{id, c})
	}
	h.mu.Unlock()

	for _, t := range snapshot {
		select {
		case t.client.ch <- buildID:
		default:
			h.drop(t.id)
		}
	}
	h.logger.Debug("reload broadcast", logfields.BuildID(buildID), logfields.Count(len(snapshot)))
}

// Shutdown disconnects every client and rejects new ones.
func (h *ReloadHub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.done)
	}
}

func (h *ReloadHub) drop(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// ReloadScript is the browser side of the hub: reload the page when a
// new build ID arrives.
const ReloadScript = `(() => {
  if (window.__SITEBUILDER_RELOAD__) return;
  window.__SITEBUILDER_RELOAD__ = true;
  let current = null;
  function connect() {
    const es = new EventSource("/livereload");
    es.onmessage = (e) => {
      if (current === null) { current = e.data; return; }
      if (e.data !== current) { location.reload(); }
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();`

const reloadSnippet = `<script src="/livereload.js"></script>`

// injectReload wraps next and appends the reload snippet to text/html
// responses, just before </body> when present.
func injectReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &htmlRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		rec.finish()
	})
}

// htmlRecorder buffers HTML response bodies so the snippet can be
// spliced in; everything else streams through untouched.
type htmlRecorder struct {
	http.ResponseWriter
	wroteHeader bool
	html        bool
	buf         bytes.Buffer
}

func (rec *htmlRecorder) WriteHeader(code int) {
	if rec.wroteHeader {
		return
	}
	rec.wroteHeader = true
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") && code == http.StatusOK {
		rec.html = true
		// The body grows after injection.
		rec.Header().Del("Content-Length")
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *htmlRecorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		if rec.Header().Get("Content-Type") == "" {
			rec.Header().Set("Content-Type", http.DetectContentType(b))
		}
		rec.WriteHeader(http.StatusOK)
	}
	if rec.html {
		return rec.buf.Write(b)
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *htmlRecorder) finish() {
	if !rec.html {
		return
	}
	body := rec.buf.Bytes()
	var out []byte
	if i := bytes.LastIndex(body, []byte("</body>")); i >= 0 {
		out = make([]byte, 0, len(body)+len(reloadSnippet))
		out = append(out, body[:i]...)
		out = append(out, reloadSnippet...)
		out = append(out, body[i:]...)
	} else {
		out = append(body, reloadSnippet...)
	}
	_, _ = rec.ResponseWriter.Write(out)
}
