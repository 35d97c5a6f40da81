package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"hangoutsync/internal/docstore"
	"hangoutsync/internal/remote"
)

const (
	watchWriteWait  = 10 * time.Second
	watchPingPeriod = 30 * time.Second
)

// handleWatch streams a query's result set: one frame with the current
// documents as additions, then the committed diffs that touch the query.
// Live diffs honour the filters but not the limit.
func (a *api) handleWatch(w http.ResponseWriter, r *http.Request) {
	uid, _ := CurrentUID(r.Context())
	q, err := remote.ParseQuery(r.URL.Query())
	if err != nil {
		WriteError(w, http.StatusBadRequest, "bad_query", err.Error())
		return
	}
	if err := canQuery(uid, q.Collection); err != nil {
		WriteDomainError(w, err)
		return
	}

	sub := a.docs.Hub().Subscribe(q.Collection)
	defer sub.Close()

	snapshot, err := a.docs.Query(r.Context(), q)
	if err != nil {
		a.logger.Error("watch: snapshot failed", "query", q.String(), "err", err)
		WriteDomainError(w, err)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	a.logger.Debug("watch: subscribed", "uid", uid, "query", q.String())

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(4 * 1024)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	initial := make([]remote.Change, 0, len(snapshot))
	for _, d := range snapshot {
		initial = append(initial, remote.Change{Kind: remote.Added, Doc: d})
	}
	if err := writeFrame(conn, remote.Frame{Changes: initial}); err != nil {
		return
	}

	ping := time.NewTicker(watchPingPeriod)
	defer ping.Stop()
	for {
		select {
		case changes, ok := <-sub.C:
			if !ok {
				a.logger.Warn("watch: subscriber dropped", "uid", uid, "query", q.String())
				_ = writeFrame(conn, remote.Frame{Error: &remote.FrameError{
					Code:    "subscription_dropped",
					Message: "fell behind the change feed; resubscribe",
				}})
				return
			}
			if filtered := docstore.FilterChanges(q, changes); len(filtered) > 0 {
				if err := writeFrame(conn, remote.Frame{Changes: filtered}); err != nil {
					return
				}
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(watchWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-a.shutdown:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f remote.Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
	return conn.WriteJSON(f)
}
