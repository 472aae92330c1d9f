package internal

import (
	"chat-presence/domain"
	"chat-presence/domain/event"
	"chat-presence/observability"
	"chat-presence/protocol"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed inspect.html
var templatesFS embed.FS

type SnapshotProvider interface {
	Snapshot() domain.Snapshot
}

type ProcessProvider interface {
	GetLatest() observability.ProcessStats
}

type TimelineProvider interface {
	Recent() []event.Broadcast
}

type UserView struct {
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	LastSeen string `json:"last_seen"`
}

type PendingView struct {
	Recipient string `json:"recipient"`
	Count     int    `json:"count"`
}

// StatusView is the JSON body of /status.
type StatusView struct {
	Users          []UserView                 `json:"users"`
	Online         int                        `json:"online"`
	Channels       []string                   `json:"channels"`
	Messages       int                        `json:"messages"`
	OfflinePending []PendingView              `json:"offline_pending"`
	Process        observability.ProcessStats `json:"process"`
	TakenAt        string                     `json:"taken_at"`
}

type BroadcastRow struct {
	Topic     string
	Type      string
	Sender    string
	Message   string
	Timestamp string
}

type PageData struct {
	Status StatusView
	Recent []BroadcastRow
}

// StatusServer serves the read-only reporting surface: a JSON status,
// an HTML inspect page and the Prometheus metrics.
type StatusServer struct {
	log       *slog.Logger
	port      int
	snapshots SnapshotProvider
	process   ProcessProvider
	timeline  TimelineProvider
	registry  *prometheus.Registry
	tmpl      *template.Template
}

func NewStatusServer(log *slog.Logger, port int, snapshots SnapshotProvider,
	process ProcessProvider, timeline TimelineProvider, registry *prometheus.Registry) *StatusServer {
	return &StatusServer{
		log:       log,
		port:      port,
		snapshots: snapshots,
		process:   process,
		timeline:  timeline,
		registry:  registry,
		tmpl:      template.Must(template.ParseFS(templatesFS, "inspect.html")),
	}
}

func (s *StatusServer) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/inspect", s.handleInspect).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return router
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *StatusServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Status server started", "url", fmt.Sprintf("http://localhost:%d/inspect", s.port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *StatusServer) Status() StatusView {
	snapshot := s.snapshots.Snapshot()

	users := make([]UserView, 0, len(snapshot.Users))
	for _, u := range snapshot.Users {
		users = append(users, UserView{Name: u.Name, Online: u.Online, LastSeen: protocol.FormatTime(u.LastSeen)})
	}
	pending := make([]PendingView, 0, len(snapshot.OfflinePending))
	for recipient, count := range snapshot.OfflinePending {
		pending = append(pending, PendingView{Recipient: recipient, Count: count})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Recipient < pending[j].Recipient })

	view := StatusView{
		Users:          users,
		Online:         snapshot.OnlineCount(),
		Channels:       snapshot.Channels,
		Messages:       snapshot.Messages,
		OfflinePending: pending,
		TakenAt:        protocol.FormatTime(snapshot.TakenAt),
	}
	if s.process != nil {
		view.Process = s.process.GetLatest()
	}
	return view
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		s.log.Warn("Failed to write status", "error", err)
	}
}

func (s *StatusServer) handleInspect(w http.ResponseWriter, _ *http.Request) {
	data := PageData{Status: s.Status()}
	if s.timeline != nil {
		for _, b := range s.timeline.Recent() {
			data.Recent = append(data.Recent, BroadcastRow{
				Topic:     b.Topic,
				Type:      string(b.Event.Type),
				Sender:    b.Event.Sender,
				Message:   b.Event.Message,
				Timestamp: b.Event.At.UTC().Format("15:04:05"),
			})
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		s.log.Warn("Failed to render inspect page", "error", err)
	}
}
