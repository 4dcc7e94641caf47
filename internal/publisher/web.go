package publisher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// maxNotices is how many recent notices the page keeps.
const maxNotices = 20

// CommandHandler receives a chat message posted to the command endpoint.
type CommandHandler func(ctx context.Context, text, user string) error

// WebPublisher serves the latest digest and recent notices as an HTML page
// and accepts chat commands on POST /command.
type WebPublisher struct {
	addr    string
	server  *http.Server
	log     *zap.Logger
	mu      sync.RWMutex
	latest  *Digest
	notices []string
	onCmd   CommandHandler
	running sync.WaitGroup
}

func NewWebPublisher(addr string, log *zap.Logger) *WebPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	wp := &WebPublisher{addr: addr, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", wp.handleIndex)
	mux.HandleFunc("POST /command", wp.handleCommand)
	wp.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return wp
}

// HandleCommands registers the handler behind POST /command.
func (wp *WebPublisher) HandleCommands(h CommandHandler) {
	wp.mu.Lock()
	wp.onCmd = h
	wp.mu.Unlock()
}

// Start begins serving HTTP in the background. Call Shutdown to stop.
func (wp *WebPublisher) Start() error {
	ln, err := net.Listen("tcp", wp.addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", wp.addr, err)
	}
	go func() {
		wp.log.Info("Web publisher listening", zap.String("addr", ln.Addr().String()))
		if err := wp.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			wp.log.Error("Web publisher stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server and waits for accepted
// commands to finish until ctx expires.
func (wp *WebPublisher) Shutdown(ctx context.Context) error {
	if err := wp.server.Shutdown(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		wp.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		wp.log.Warn("Commands still running at shutdown", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (wp *WebPublisher) Publish(_ context.Context, digest *Digest) error {
	wp.mu.Lock()
	wp.latest = digest
	wp.mu.Unlock()
	wp.log.Info("Web publisher updated", zap.Int("articles", len(digest.Articles)))
	return nil
}

func (wp *WebPublisher) Notify(_ context.Context, text string) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.notices = append(wp.notices, text)
	if len(wp.notices) > maxNotices {
		wp.notices = wp.notices[len(wp.notices)-maxNotices:]
	}
	return nil
}

func (wp *WebPublisher) handleIndex(w http.ResponseWriter, r *http.Request) {
	wp.mu.RLock()
	digest := wp.latest
	notices := append([]string(nil), wp.notices...)
	wp.mu.RUnlock()

	var md strings.Builder
	md.WriteString("# paperbot\n\n")
	if digest == nil {
		md.WriteString("No digest available yet. Check back later.\n")
	} else {
		md.WriteString(digest.Markdown())
	}
	if len(notices) > 0 {
		md.WriteString("\n## Recent messages\n")
		for i := len(notices) - 1; i >= 0; i-- {
			md.WriteString("\n---\n\n")
			md.WriteString(notices[i])
			md.WriteString("\n")
		}
	}

	page, err := renderHTML(md.String())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>paperbot</title>%s</head><body>%s</body></html>", emailStyle, page)
}

// handleCommand accepts an outgoing-webhook style form with text and
// user_name fields.
func (wp *WebPublisher) handleCommand(w http.ResponseWriter, r *http.Request) {
	wp.mu.RLock()
	h := wp.onCmd
	wp.mu.RUnlock()

	if h == nil {
		http.Error(w, "commands are not enabled", http.StatusNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	text := r.PostFormValue("text")
	if strings.TrimSpace(text) == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}

	// Commands may page through the feed for minutes; answer right away
	// and let replies flow through Notify.
	user := r.PostFormValue("user_name")
	ctx := context.WithoutCancel(r.Context())
	wp.running.Add(1)
	go func() {
		defer wp.running.Done()
		if err := h(ctx, text, user); err != nil {
			wp.log.Warn("Command failed", zap.String("text", text), zap.Error(err))
		}
	}()
	w.WriteHeader(http.StatusAccepted)
}
