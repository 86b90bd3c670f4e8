package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/viant/toolbox"

	"github.com/viant/overseer/model/approval"
	"github.com/viant/overseer/model/checkpoint"
	"github.com/viant/overseer/tracing"
)

type errorResponse struct {
	Error string `json:"error"`
}

type acceptedResponse struct {
	RequestID string `json:"requestId"`
	Accepted  bool   `json:"accepted"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// forbidden is the single rejection for every failed callback, so a caller
// cannot tell an unknown id from a bad token or a resolved request.
func forbidden(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
}

func (srv *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	annotate(r, id)
	var cb approval.Callback
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil || json.Unmarshal(data, &cb) != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid callback payload"})
		return
	}
	if cb.RequestID == "" {
		cb.RequestID = id
	}
	if cb.RequestID != id {
		forbidden(w)
		return
	}
	if cb.ApprovalToken == "" {
		cb.ApprovalToken = bearerToken(r)
	}
	if !srv.approvals.ReceiveAsyncResponse(r.Context(), &cb) {
		forbidden(w)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{RequestID: id, Accepted: true})
}

func annotate(r *http.Request, id string) {
	if span, ok := tracing.SpanFromContext(r.Context()); ok {
		span.WithAttributes(map[string]string{"approval.request_id": id})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// handleRespond serves the one-click links embedded in notifications.
func (srv *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	annotate(r, r.PathValue("id"))
	cb, err := callbackFromQuery(r.PathValue("id"), r)
	if err != nil {
		writePage(w, http.StatusBadRequest, err.Error())
		return
	}
	if !srv.approvals.ReceiveAsyncResponse(r.Context(), cb) {
		writePage(w, http.StatusForbidden, "This approval link is invalid or no longer active.")
		return
	}
	writePage(w, http.StatusOK, fmt.Sprintf("Recorded %s for request %s.", cb.Action, cb.RequestID))
}

func callbackFromQuery(id string, r *http.Request) (*approval.Callback, error) {
	query := r.URL.Query()
	cb := &approval.Callback{
		RequestID:            id,
		ApprovalToken:        query.Get("token"),
		Responder:            query.Get("responder"),
		Notes:                query.Get("notes"),
		RedirectInstructions: query.Get("instructions"),
		Channel:              approval.ChannelWebhook,
	}
	if raw := query.Get("approved"); raw != "" {
		cb.Approved = toolbox.AsBoolean(raw)
	}
	if raw := query.Get("action"); raw != "" {
		action, err := checkpoint.ParseAction(raw)
		if err != nil {
			return nil, err
		}
		cb.Action = action
	}
	if raw := query.Get("channel"); raw != "" {
		channel, err := approval.ParseChannel(raw)
		if err != nil {
			return nil, err
		}
		cb.Channel = channel
	}
	if cb.Action == checkpoint.ActionRedirect && strings.TrimSpace(cb.RedirectInstructions) == "" {
		return nil, fmt.Errorf("redirect requires instructions")
	}
	return cb, nil
}

func writePage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "<!doctype html><html><body><p>%s</p></body></html>\n", html.EscapeString(message))
}

// handleEvents streams approval events over a websocket until the client
// goes away.
func (srv *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	events, unsubscribe := srv.approvals.Events().Subscribe(srv.options.EventBuffer)
	defer unsubscribe()
	ctx := ws.CloseRead(r.Context())
	srv.logger.Debug("event_stream_opened", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				ws.Close(websocket.StatusNormalClosure, "stream ended")
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err = ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
