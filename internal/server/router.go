package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/tidwall/gjson"
)

// EventHandler handles the data of one client frame. Returning an
// *EventError sends its code and message back to the client.
type EventHandler func(c *Client, data gjson.Result) error

// Router demultiplexes client frames of the form {"event": ..., "data": ...}
// to the handler registered for the event name.
type Router struct {
	log      *log.Logger
	handlers map[string]EventHandler
}

func NewRouter(logger *log.Logger) *Router {
	return &Router{
		log:      logger,
		handlers: make(map[string]EventHandler),
	}
}

func (r *Router) Handle(event string, h EventHandler) {
	if event == "" || h == nil {
		panic("router: empty event or nil handler")
	}
	if _, ok := r.handlers[event]; ok {
		panic(fmt.Sprintf("router: duplicate handler for %q", event))
	}
	r.handlers[event] = h
}

func (r *Router) Dispatch(c *Client, raw []byte) {
	if !gjson.ValidBytes(raw) {
		c.queueMessage(ErrorEvent("", http.StatusBadRequest, "invalid message format"))
		return
	}

	event := gjson.GetBytes(raw, "event")
	if event.Type != gjson.String || event.Str == "" {
		c.queueMessage(ErrorEvent("", http.StatusBadRequest, "invalid message format"))
		return
	}

	h, ok := r.handlers[event.Str]
	if !ok {
		c.queueMessage(ErrorEvent(event.Str, http.StatusNotFound, "unknown event"))
		return
	}

	if err := h(c, gjson.GetBytes(raw, "data")); err != nil {
		var evErr *EventError
		if errors.As(err, &evErr) {
			c.queueMessage(ErrorEvent(event.Str, evErr.Code, evErr.Message))
			return
		}
		r.log.Printf("handle %s from connection %s: %v", event.Str, c.id, err)
		c.queueMessage(ErrorEvent(event.Str, http.StatusInternalServerError, "internal server error"))
	}
}
