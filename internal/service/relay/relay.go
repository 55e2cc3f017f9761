// Package relay coordinates sessions, the chat log and broadcast fan-out.
//
// A single goroutine consumes every inbound session event in arrival order,
// so no two events mutate the registry or the chat log concurrently from
// the relay path. AI completions run as detached tasks and re-enter through
// Inject, which is serialized by the same loop.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tessamero/chatrelay/backend/internal/config"
	"github.com/tessamero/chatrelay/backend/internal/hub"
	"github.com/tessamero/chatrelay/backend/internal/model/chat"
	"github.com/tessamero/chatrelay/backend/internal/service/history"
	"github.com/tessamero/chatrelay/backend/internal/service/registry"
	"github.com/tessamero/chatrelay/backend/internal/trigger"
	"github.com/tessamero/chatrelay/backend/pkg/log"
)

const aiThinkingBody = "🤖 AI is thinking..."

// Dispatcher hands an AI-directed message off to the completion pipeline.
// Dispatch must return without blocking.
type Dispatcher interface {
	Dispatch(username, body string)
}

// AvailabilityFunc reports cached provider availability without blocking.
type AvailabilityFunc func() bool

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdFrame
	cmdDetach
	cmdInject
)

type command struct {
	kind   commandKind
	client *hub.Client
	raw    []byte
	record chat.Message
}

// Relay is the broadcast coordinator.
type Relay struct {
	cfg        config.ChatConfig
	registry   *registry.Registry
	history    *history.Log
	detector   *trigger.Detector
	available  AvailabilityFunc
	dispatcher Dispatcher

	commands chan command
	clients  map[string]*hub.Client
}

// New creates a relay over the given stores. The dispatcher is optional and
// wired afterwards via SetDispatcher to break the construction cycle.
func New(cfg config.ChatConfig, reg *registry.Registry, hist *history.Log, det *trigger.Detector, available AvailabilityFunc) *Relay {
	if available == nil {
		available = func() bool { return false }
	}
	return &Relay{
		cfg:       cfg,
		registry:  reg,
		history:   hist,
		detector:  det,
		available: available,
		commands:  make(chan command, 256),
		clients:   make(map[string]*hub.Client),
	}
}

// SetDispatcher wires the AI dispatch pipeline. Call before Run.
func (r *Relay) SetDispatcher(d Dispatcher) {
	r.dispatcher = d
}

// Run processes commands until the context is cancelled. It owns the idle
// sweep schedule as well.
func (r *Relay) Run(ctx context.Context) {
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case cmd := <-r.commands:
			r.handle(cmd)
		case <-sweep.C:
			r.sweepIdle()
		}
	}
}

// Connect registers an upgraded connection with the coordinator.
func (r *Relay) Connect(client *hub.Client) {
	r.commands <- command{kind: cmdConnect, client: client}
}

// HandleFrame feeds one raw inbound frame into the coordinator.
func (r *Relay) HandleFrame(client *hub.Client, raw []byte) {
	r.commands <- command{kind: cmdFrame, client: client, raw: raw}
}

// Detach removes a dropped connection. Safe to call more than once.
func (r *Relay) Detach(client *hub.Client) {
	r.commands <- command{kind: cmdDetach, client: client}
}

// Inject appends a record produced outside the relay path (AI completions)
// and broadcasts it. Safe for concurrent use.
func (r *Relay) Inject(record chat.Message) {
	r.commands <- command{kind: cmdInject, record: record}
}

// ActiveUsers returns the current presence set.
func (r *Relay) ActiveUsers() []string {
	return r.registry.Names()
}

// SessionCount reports the number of live sessions.
func (r *Relay) SessionCount() int {
	return r.registry.Len()
}

func (r *Relay) handle(cmd command) {
	defer func() {
		if rec := recover(); rec != nil {
			log.L().Error().Interface("panic", rec).Msg("relay handler panic")
			if cmd.client != nil {
				if _, ok := r.clients[cmd.client.ID]; ok {
					r.sendError(cmd.client, "An unexpected error occurred")
				}
			}
		}
	}()

	switch cmd.kind {
	case cmdConnect:
		r.handleConnect(cmd.client)
	case cmdFrame:
		r.handleFrame(cmd.client, cmd.raw)
	case cmdDetach:
		r.removeClient(cmd.client.ID)
	case cmdInject:
		r.appendAndBroadcast(cmd.record)
	}
}

func (r *Relay) handleConnect(client *hub.Client) {
	r.clients[client.ID] = client
	r.registry.Register(client.ID)

	log.L().Info().Str("client_id", client.ID).Msg("client connected")

	r.sendTo(client, chat.EventConnectResponse, chat.ConnectAck{
		Status:           "connected",
		SID:              client.ID,
		AIAvailable:      r.available(),
		ServerTime:       float64(time.Now().UnixNano()) / float64(time.Second),
		ActiveUsersCount: r.registry.Len(),
	})
}

func (r *Relay) handleFrame(client *hub.Client, raw []byte) {
	// A frame can still be queued behind an explicit disconnect or an idle
	// sweep; the session is gone, drop it.
	if _, ok := r.clients[client.ID]; !ok {
		return
	}

	var event chat.Inbound
	if err := json.Unmarshal(raw, &event); err != nil {
		r.sendError(client, "Invalid message format")
		return
	}

	r.registry.Touch(client.ID)

	switch event.Type {
	case chat.EventJoinChat:
		var req chat.JoinRequest
		if err := json.Unmarshal(event.Data, &req); err != nil {
			r.sendError(client, "Invalid join_chat payload")
			return
		}
		r.handleJoin(client, req.Username)

	case chat.EventSendMessage:
		var req chat.SendRequest
		if err := json.Unmarshal(event.Data, &req); err != nil {
			r.sendError(client, "Invalid send_message payload")
			return
		}
		r.handleSend(client, req.Message)

	case chat.EventGetActiveUsers:
		r.sendTo(client, chat.EventActiveUsers, r.registry.Names())

	case chat.EventGetChatHistory:
		r.sendTo(client, chat.EventChatHistory, r.history.Snapshot())

	case chat.EventPing:
		r.sendTo(client, chat.EventPong, chat.PongPayload{
			Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		})

	case chat.EventDisconnect:
		r.removeClient(client.ID)

	default:
		r.sendError(client, "Unknown event type: "+event.Type)
	}
}

func (r *Relay) handleJoin(client *hub.Client, username string) {
	if err := r.registry.SetIdentity(client.ID, username); err != nil {
		r.sendError(client, joinErrorMessage(err, r.cfg.MaxNameLen))
		return
	}

	name := strings.TrimSpace(username)
	log.L().Info().Str("client_id", client.ID).Str("username", name).Msg("user joined chat")

	r.sendTo(client, chat.EventChatHistory, r.history.Snapshot())
	r.appendAndBroadcast(chat.SystemMessage(fmt.Sprintf("🎉 %s joined the chat", name)))
	r.broadcast(chat.EventActiveUsers, r.registry.Names())
	r.sendTo(client, chat.EventJoinSuccess, map[string]string{"username": name})
}

func (r *Relay) handleSend(client *hub.Client, body string) {
	session, ok := r.registry.Get(client.ID)
	if !ok || !session.Identified() {
		r.sendError(client, "Not logged in")
		return
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	if utf8.RuneCountInString(body) > r.cfg.MaxMessageLen {
		r.sendError(client, fmt.Sprintf("Message too long (max %d characters)", r.cfg.MaxMessageLen))
		return
	}

	r.appendAndBroadcast(chat.Message{
		Username: session.Username,
		Body:     body,
		Kind:     chat.KindUser,
	})

	if r.dispatcher != nil && r.detector.Match(body) {
		log.L().Info().Str("username", session.Username).Msg("ai request detected")
		r.appendAndBroadcast(chat.SystemMessage(aiThinkingBody))
		r.dispatcher.Dispatch(session.Username, body)
	}
}

func (r *Relay) removeClient(clientID string) {
	if client, ok := r.clients[clientID]; ok {
		delete(r.clients, clientID)
		client.Close()
	}

	name, identified := r.registry.Unregister(clientID)
	if !identified {
		if name == "" {
			log.L().Debug().Str("client_id", clientID).Msg("client disconnected")
		}
		return
	}

	log.L().Info().Str("username", name).Msg("user left chat")
	r.appendAndBroadcast(chat.SystemMessage(fmt.Sprintf("👋 %s left the chat", name)))
	r.broadcast(chat.EventActiveUsers, r.registry.Names())
}

func (r *Relay) sweepIdle() {
	removed := r.registry.Sweep(r.cfg.IdleTimeout)
	for _, session := range removed {
		if client, ok := r.clients[session.ID]; ok {
			delete(r.clients, session.ID)
			client.Close()
		}
		if session.Username == "" {
			continue
		}
		log.L().Info().Str("username", session.Username).Msg("removed inactive user")
		r.appendAndBroadcast(chat.SystemMessage(fmt.Sprintf("👋 %s left the chat", session.Username)))
	}
	if len(removed) > 0 {
		r.broadcast(chat.EventActiveUsers, r.registry.Names())
	}
}

func (r *Relay) appendAndBroadcast(record chat.Message) {
	stored := r.history.Append(record)
	r.broadcast(chat.EventNewMessage, stored)
}

func (r *Relay) broadcast(eventType string, data any) {
	frame, err := json.Marshal(chat.NewOutbound(eventType, data))
	if err != nil {
		log.L().Error().Err(err).Str("event", eventType).Msg("failed to marshal broadcast")
		return
	}

	var evicted []string
	for id, client := range r.clients {
		if !client.Enqueue(frame) {
			evicted = append(evicted, id)
		}
	}
	// Slow consumers are dropped rather than allowed to stall the room.
	for _, id := range evicted {
		log.L().Warn().Str("client_id", id).Msg("dropping slow client")
		r.removeClient(id)
	}
}

func (r *Relay) sendTo(client *hub.Client, eventType string, data any) {
	frame, err := json.Marshal(chat.NewOutbound(eventType, data))
	if err != nil {
		log.L().Error().Err(err).Str("event", eventType).Msg("failed to marshal event")
		return
	}
	if !client.Enqueue(frame) {
		r.removeClient(client.ID)
	}
}

func (r *Relay) sendError(client *hub.Client, message string) {
	r.sendTo(client, chat.EventError, chat.ErrorPayload{Message: message})
}

func (r *Relay) shutdown() {
	for id, client := range r.clients {
		delete(r.clients, id)
		client.Close()
	}
}

func joinErrorMessage(err error, maxNameLen int) string {
	switch {
	case errors.Is(err, registry.ErrNameTaken):
		return "Username already taken"
	case errors.Is(err, registry.ErrInvalidName):
		return fmt.Sprintf("Username is required and must be at most %d characters", maxNameLen)
	case errors.Is(err, registry.ErrAlreadyIdentified):
		return "Already joined"
	default:
		return "An error occurred while joining the chat"
	}
}
