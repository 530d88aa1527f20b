package dashboard

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/meshpage/meshpage/filter"
	"github.com/meshpage/meshpage/m"
	"github.com/meshpage/meshpage/mgr"
	"github.com/meshpage/meshpage/storage"
)

const (
	filterWriteTimeout = 10 * time.Second
	filterMaxMsgSize   = 1024
)

// Live filter message types.
const (
	msgTypeState  = "state"
	msgTypeUpdate = "update"
)

// filterRequest is sent by the page on input.
type filterRequest struct {
	Filter string `json:"filter"`
	// Flush applies the filter without waiting for further input.
	Flush bool `json:"flush,omitempty"`
}

// filterMessage is sent to the page.
type filterMessage struct {
	Type string `json:"type"`

	// State is set for state messages.
	State *filter.State `json:"state,omitempty"`

	// Digest is set for update messages and identifies the new snapshot.
	Digest string `json:"digest,omitempty"`
}

// filterSession is a live filter connection of a single page.
type filterSession struct {
	id   uuid.UUID
	d    *Dashboard
	conn *websocket.Conn
	live *filter.Live

	writeLock sync.Mutex
}

func (d *Dashboard) meshFilterSocket(w http.ResponseWriter, r *http.Request) {
	// Check request token.
	q := r.URL.Query()
	if !d.CheckRequestToken(q.Get("nonce"), q.Get("token"), actionMeshFilter) {
		http.Error(w, "invalid request token", http.StatusForbidden)
		return
	}

	// Upgrade to websocket.
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrader already responded.
		return
	}

	s := &filterSession{
		id:   uuid.New(),
		d:    d,
		conn: conn,
	}

	// Use the request worker, if available.
	wkr := mgr.WorkerFromCtx(r.Context())
	if wkr == nil {
		_ = d.mgr.Do("live filter session", s.run)
		return
	}
	if err := s.run(wkr); err != nil {
		wkr.Warn("live filter session failed", "session", s.id, "err", err)
	}
}

func (s *filterSession) run(w *mgr.WorkerCtx) error {
	defer s.conn.Close() //nolint:errcheck

	started := time.Now()
	w.Debug("live filter session started", "session", s.id)
	defer func() {
		w.Debug(
			"live filter session ended",
			"session", s.id,
			"duration", time.Since(started),
		)
	}()

	// Create live filter on the current view.
	f, err := s.currentFilter()
	if err != nil {
		return err
	}
	s.live = filter.NewLive(s.d.mgr, f, s.d.instance.Config().FilterDebounce, s.sendState)
	defer s.live.Close()

	// Follow snapshot updates.
	sub := s.d.instance.Storage().SnapshotEvents().Subscribe("live filter session "+s.id.String(), 1)
	defer sub.Cancel()
	done := make(chan struct{})
	defer close(done)
	s.d.mgr.Go("live filter updates", func(w *mgr.WorkerCtx) error {
		return s.followUpdates(w, sub, done)
	})

	// Read filter input until the connection closes.
	s.conn.SetReadLimit(filterMaxMsgSize)
	for {
		var req filterRequest
		err := s.conn.ReadJSON(&req)
		switch {
		case err == nil:
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			return nil
		case errors.Is(err, net.ErrClosed):
			return nil
		default:
			return err
		}

		if w.LogEnabled(slog.LevelDebug) {
			w.Debug("live filter input", "session", s.id, "filter", m.SafeString(req.Filter))
		}
		s.live.Input(req.Filter)
		if req.Flush {
			s.live.Flush()
		}
	}
}

// followUpdates swaps the filter whenever a new snapshot is loaded and
// closes the connection when the dashboard stops.
func (s *filterSession) followUpdates(
	w *mgr.WorkerCtx,
	sub *mgr.EventSubscription[*storage.StoredSnapshot],
	done chan struct{},
) error {
	for {
		select {
		case stored := <-sub.Events():
			f, err := s.currentFilter()
			if err != nil {
				w.Warn("failed to update live filter", "session", s.id, "err", err)
				continue
			}
			// Notify the page first, so it reloads before receiving the new state.
			if err := s.send(&filterMessage{Type: msgTypeUpdate, Digest: stored.Digest}); err != nil {
				return nil
			}
			s.live.SetFilter(f)

		case <-done:
			return nil

		case <-w.Done():
			_ = s.send(nil)
			return nil
		}
	}
}

// currentFilter returns a filter on the current view.
func (s *filterSession) currentFilter() (*filter.Filter, error) {
	view, _, err := s.d.meshView()
	if err != nil {
		return nil, err
	}
	if view == nil {
		return filter.New(nil), nil
	}
	return filter.New(view.Targets()), nil
}

func (s *filterSession) sendState(w *mgr.WorkerCtx, state filter.State) error {
	return s.send(&filterMessage{
		Type:  msgTypeState,
		State: &state,
	})
}

// send sends a message to the page. A nil message closes the connection.
func (s *filterSession) send(msg *filterMessage) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	deadline := time.Now().Add(filterWriteTimeout)
	if msg == nil {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			deadline,
		)
		return s.conn.Close()
	}

	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}
