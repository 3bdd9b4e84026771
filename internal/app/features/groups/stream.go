// internal/app/features/groups/stream.go
package groups

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dalemusser/giftexchange/internal/app/exchange"
	"github.com/dalemusser/giftexchange/internal/app/system/normalize"
	"go.uber.org/zap"
)

// ServeStream handles GET /groups/stream?selected=<id> as Server-Sent
// Events. Every directory change is sent as a "view" event carrying the
// whole list. When the live feed fails an "error" event carries the banner;
// the stream stays open and the next view clears it. Signing out elsewhere
// ends the stream with a "signed_out" event.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	u, ok := h.signedIn(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.ErrLog.Fail(w, r, "response writer cannot stream", &exchange.StoreError{Op: "stream", Err: fmt.Errorf("%T is not an http.Flusher", w)})
		return
	}

	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	d := h.Svc.NewDirectory()
	defer d.Stop()

	who := u.Identity()
	d.SetIdentity(ctx, &who)
	if sel := normalize.QueryParam(r.URL.Query().Get("selected")); sel != "" {
		d.SelectGroup(sel)
	}

	if _, err := io.WriteString(w, "retry: 2000\n\n"); err != nil {
		return
	}
	flusher.Flush()

	every := h.Heartbeat
	if every <= 0 {
		every = DefaultHeartbeat
	}
	heartbeat := time.NewTicker(every)
	defer heartbeat.Stop()

	banner := ""
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-d.Updates():
			if v.UserID == "" {
				_ = writeEvent(w, "signed_out", map[string]string{})
				flusher.Flush()
				return
			}
			if !v.Loaded && v.Banner == "" {
				continue
			}
			if v.Banner != "" && v.Banner != banner {
				if err := writeEvent(w, "error", map[string]string{"banner": v.Banner}); err != nil {
					return
				}
			}
			banner = v.Banner
			if err := writeEvent(w, "view", directory(v, u.ID)); err != nil {
				h.Log.Debug("stream closed", zap.String("user_id", u.ID), zap.Error(err))
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
