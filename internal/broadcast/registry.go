package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Client is one registered connection. Send is safe to call from any
// goroutine; all writes funnel through the connection's writer.
type Client struct {
	id       uuid.UUID
	identity domain.Identity
	writer   *clientWriter
}

// Identity returns the authenticated identity behind the connection.
func (c *Client) Identity() domain.Identity {
	return c.identity
}

// Send enqueues a frame for the connection's writer. It reports false when
// the client's buffer is full or the writer has stopped; the caller decides
// whether that warrants eviction.
func (c *Client) Send(data []byte) bool {
	return c.writer.enqueue(data)
}

// SendWait enqueues like Send but blocks until the writer has buffer room,
// up to timeout. Replay pages are larger than the send buffer by design;
// they must pace themselves to the socket rather than drop frames.
func (c *Client) SendWait(data []byte, timeout time.Duration) bool {
	return c.writer.enqueueBlocking(data, timeout)
}

// Group keys. Every connection joins its identity and role groups; cadet
// connections additionally join their subject group.
func identityGroup(userID int64) string { return fmt.Sprintf("identity:%d", userID) }
func roleGroup(role domain.Role) string { return "role:" + string(role) }
func subjectGroup(cadetID int64) string { return fmt.Sprintf("subject:%d", cadetID) }

// --- Commands ---

type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type joinResult struct {
	client *Client
	err    error
}

type joinCmd struct {
	baseRegistryCmd
	identity     domain.Identity
	connection   *websocket.Conn
	replyChannel chan joinResult
}

type leaveCmd struct {
	baseRegistryCmd
	client *Client
}

type deliverCmd struct {
	baseRegistryCmd
	event domain.Event
}

type groupCountCmd struct {
	baseRegistryCmd
	group        string
	replyChannel chan int
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry is the fan-out actor. It owns the live-connection and group maps
// and pushes dispatched events to every connection allowed to see them.
type Registry struct {
	cmdCh   chan registryCmd
	clock   clockwork.Clock
	clients map[uuid.UUID]*Client
	groups  map[string]map[uuid.UUID]*Client
	done    chan struct{}
}

func NewRegistry(clock clockwork.Clock) *Registry {
	r := &Registry{
		cmdCh:   make(chan registryCmd, 256),
		clock:   clock,
		clients: make(map[uuid.UUID]*Client),
		groups:  make(map[string]map[uuid.UUID]*Client),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Join registers a connection under its identity, role, and (for cadets)
// subject groups, and starts its writer.
func (r *Registry) Join(identity domain.Identity, conn *websocket.Conn) (*Client, error) {
	replyCh := make(chan joinResult, 1)
	r.cmdCh <- joinCmd{identity: identity, connection: conn, replyChannel: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case res := <-replyCh:
		return res.client, res.err
	case <-timer.Chan():
		return nil, fmt.Errorf("join command timed out after %v", commandTimeout)
	}
}

// Leave removes a connection from every group it joined and stops its
// writer. Leaving twice, or with a client that never joined, is a no-op.
func (r *Registry) Leave(c *Client) {
	if c == nil {
		return
	}
	select {
	case r.cmdCh <- leaveCmd{client: c}:
	case <-r.done:
	}
}

// Deliver implements domain.EventSink. Fan-out failures never surface here:
// a slow or departed connection is handled internally, and delivery to the
// remaining connections proceeds.
func (r *Registry) Deliver(_ context.Context, e domain.Event) error {
	select {
	case r.cmdCh <- deliverCmd{event: e}:
		return nil
	case <-r.done:
		return fmt.Errorf("registry stopped")
	}
}

// GroupCount returns the number of connections in a group. Returns -1 if
// the command times out.
func (r *Registry) GroupCount(group string) int {
	replyCh := make(chan int, 1)
	r.cmdCh <- groupCountCmd{group: group, replyChannel: replyCh}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("GroupCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// ClientCount returns the total number of registered connections.
func (r *Registry) ClientCount() int {
	return r.GroupCount("")
}

// Stop closes every connection and shuts the actor down. Blocks until the
// actor goroutine exits or the stop timeout elapses.
func (r *Registry) Stop() {
	r.cmdCh <- stopCmd{}

	timer := r.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-r.done:
		slog.Info("Registry stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Registry stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (r *Registry) run() {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Registry panic recovered", "panic", rec)
			r.closeAll("registry panic")
			close(r.done)
		}
	}()

	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case joinCmd:
			r.handleJoin(c)
		case leaveCmd:
			r.handleLeave(c.client)
		case deliverCmd:
			r.handleDeliver(c.event)
		case groupCountCmd:
			if c.group == "" {
				c.replyChannel <- len(r.clients)
			} else {
				c.replyChannel <- len(r.groups[c.group])
			}
		case stopCmd:
			r.closeAll("Server shutting down")
			close(r.done)
			return
		default:
			slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

// groupKeys derives the group memberships for an identity.
func groupKeys(identity domain.Identity) []string {
	keys := []string{identityGroup(identity.UserID), roleGroup(identity.Role)}
	if identity.Role == domain.RoleCadet && identity.CadetID != nil {
		keys = append(keys, subjectGroup(*identity.CadetID))
	}
	return keys
}

func (r *Registry) handleJoin(c joinCmd) {
	client := &Client{
		id:       uuid.New(),
		identity: c.identity,
		writer:   newClientWriter(c.connection, r.clock),
	}
	r.clients[client.id] = client

	for _, key := range groupKeys(c.identity) {
		group, exists := r.groups[key]
		if !exists {
			group = make(map[uuid.UUID]*Client)
			r.groups[key] = group
		}
		group[client.id] = client
	}

	metrics.RegistryConnectedClients.Set(float64(len(r.clients)))
	metrics.RegistryGroups.Set(float64(len(r.groups)))

	slog.Debug("Connection joined",
		"user_id", c.identity.UserID,
		"role", c.identity.Role,
		"total_clients", len(r.clients),
	)
	c.replyChannel <- joinResult{client: client}
}

func (r *Registry) handleLeave(client *Client) {
	if _, exists := r.clients[client.id]; !exists {
		return
	}

	client.writer.stop()
	delete(r.clients, client.id)

	for _, key := range groupKeys(client.identity) {
		group, exists := r.groups[key]
		if !exists {
			continue
		}
		delete(group, client.id)
		if len(group) == 0 {
			delete(r.groups, key)
		}
	}

	metrics.RegistryConnectedClients.Set(float64(len(r.clients)))
	metrics.RegistryGroups.Set(float64(len(r.groups)))

	slog.Debug("Connection left",
		"user_id", client.identity.UserID,
		"remaining_clients", len(r.clients),
	)
}

func (r *Registry) handleDeliver(e domain.Event) {
	targets := r.resolveTargets(e)
	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(domain.NewEventFrame(e, false))
	if err != nil {
		slog.Error("Failed to marshal event frame", "event_id", e.ID, "error", err)
		return
	}

	var slow []*Client
	for _, client := range targets {
		if client.writer.enqueue(data) {
			metrics.RegistryFramesPushedTotal.Inc()
		} else {
			slow = append(slow, client)
		}
	}

	for _, client := range slow {
		slog.Warn("Evicting slow client",
			"user_id", client.identity.UserID,
			"event_id", e.ID,
		)
		metrics.RegistrySlowClientsEvicted.Inc()
		r.handleLeave(client)
	}
}

// resolveTargets applies the visibility rule through the group maps: global
// events go to every connection; subject events go to the staff role groups
// plus the subject group, deduplicated by connection.
func (r *Registry) resolveTargets(e domain.Event) map[uuid.UUID]*Client {
	if e.Global() {
		return r.clients
	}

	targets := make(map[uuid.UUID]*Client)
	for _, key := range []string{roleGroup(domain.RoleAdmin), roleGroup(domain.RoleStaff), subjectGroup(*e.SubjectID)} {
		for id, client := range r.groups[key] {
			targets[id] = client
		}
	}
	return targets
}

func (r *Registry) closeAll(reason string) {
	slog.Info("Registry shutting down", "clients", len(r.clients))
	for id, client := range r.clients {
		client.writer.stopGraceful(reason)
		delete(r.clients, id)
	}
	for key := range r.groups {
		delete(r.groups, key)
	}
	metrics.RegistryConnectedClients.Set(0)
	metrics.RegistryGroups.Set(0)
}
