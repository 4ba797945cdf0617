package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"aaron-services/internal/common/auth"
	"aaron-services/internal/domain/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var roomPattern = regexp.MustCompile(`^(order|crew):[A-Za-z0-9-]+$`)

// PingSaver is the slice of the tracking service the gateway needs for
// client-origin location updates.
type PingSaver interface {
	SavePing(ctx context.Context, crewID, orderID string, lat, lng float64, source models.PingSource) (*models.CrewPing, error)
}

// Gateway authenticates connections, runs the subscribe/unsubscribe/
// location_update protocol and re-broadcasts bus events into rooms.
type Gateway struct {
	hub      *Hub
	pings    PingSaver
	verifier *auth.TokenVerifier
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewGateway(hub *Hub, pings PingSaver, verifier *auth.TokenVerifier, allowedOrigins []string, log *zap.SugaredLogger) *Gateway {
	g := &Gateway{
		hub:      hub,
		pings:    pings,
		verifier: verifier,
		log:      log,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades the handshake. A bad token means an immediate close with
// no error frame: the caller never learns whether the token was malformed,
// expired or missing.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	principal, authErr := g.verifier.VerifyRequest(r)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	if authErr != nil {
		conn.Close()
		return
	}

	client := &Client{
		ID:      uuid.NewString(),
		Subject: principal.Subject,
		Role:    principal.Role,
		CrewID:  principal.CrewID,
		Conn:    conn,
		Send:    make(chan []byte, 256),
	}

	g.hub.Register(client)
	go client.WritePump()
	go client.ReadPump(g)
}

// HandleClientFrame runs one inbound protocol message.
func (g *Gateway) HandleClientFrame(c *Client, raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.sendTo(c, errorFrame{Type: "error", Message: "malformed frame"})
		return
	}

	switch frame.Type {
	case "subscribe":
		g.handleSubscribe(c, frame.Room)
	case "unsubscribe":
		g.hub.Leave(c, frame.Room)
		g.sendTo(c, subscribedFrame{Type: "unsubscribed", Room: frame.Room, Success: true})
	case "location_update":
		g.handleLocationUpdate(c, frame)
	default:
		g.sendTo(c, errorFrame{Type: "error", Message: "unknown frame type"})
	}
}

func (g *Gateway) handleSubscribe(c *Client, room string) {
	if !roomPattern.MatchString(room) {
		g.sendTo(c, errorFrame{Type: "error", Message: "invalid room name"})
		return
	}
	g.hub.Join(c, room)
	g.sendTo(c, subscribedFrame{Type: "subscribed", Room: room, Success: true})
}

func (g *Gateway) handleLocationUpdate(c *Client, frame clientFrame) {
	if frame.CrewID == "" || frame.OrderID == "" {
		g.sendTo(c, errorFrame{Type: "error", Message: "crewId and orderId are required"})
		return
	}
	if !models.ValidCoordinates(frame.Lat, frame.Lng) {
		g.sendTo(c, errorFrame{Type: "error", Message: "coordinates out of range"})
		return
	}

	ping, err := g.pings.SavePing(context.Background(), frame.CrewID, frame.OrderID, frame.Lat, frame.Lng, models.SourceRealtime)
	if err != nil {
		// Failed writes are reported to the origin only, never broadcast.
		g.log.Errorw("failed to save ping", "crew_id", frame.CrewID, "error", err)
		g.sendTo(c, errorFrame{Type: "error", Message: "failed to save location"})
		return
	}

	update := locationUpdateFrame{
		Type:      "location_update",
		OrderID:   frame.OrderID,
		CrewID:    frame.CrewID,
		Lat:       frame.Lat,
		Lng:       frame.Lng,
		Timestamp: ping.CreatedAt,
	}
	g.hub.BroadcastToRoom("order:"+frame.OrderID, update)
	g.hub.BroadcastToRoom("crew:"+frame.CrewID, update)

	g.sendTo(c, locationSavedFrame{Type: "location_saved", Success: true, PingID: ping.ID})
}

// HandleBusEvent re-broadcasts one bus envelope into the relevant rooms.
// Fire and forget; duplicate or out-of-order delivery just repeats a frame.
func (g *Gateway) HandleBusEvent(env models.Envelope) {
	switch env.Type {
	case models.EventOrderEnCamino:
		var ev models.OrderEnCaminoEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			g.log.Warnw("dropping malformed en-camino event", "error", err)
			return
		}
		frame := orderEnCaminoFrame{
			Type:           "order_en_camino",
			OrderID:        ev.OrderID,
			CrewID:         ev.CrewID,
			TargetLocation: ev.TargetLocation,
			Timestamp:      eventTime(ev.Timestamp),
		}
		g.broadcast(ev.OrderID, ev.CrewID, frame)

	case models.EventOrderStatus:
		var ev models.OrderStatusEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			g.log.Warnw("dropping malformed status event", "error", err)
			return
		}
		frame := orderStatusFrame{
			Type:      "order_status",
			OrderID:   ev.OrderID,
			CrewID:    ev.CrewID,
			State:     ev.State,
			Note:      ev.Note,
			Timestamp: eventTime(ev.Timestamp),
		}
		g.broadcast(ev.OrderID, ev.CrewID, frame)

	case models.EventLocationUpdate:
		var ev models.LocationUpdateEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			g.log.Warnw("dropping malformed location event", "error", err)
			return
		}
		frame := locationUpdateFrame{
			Type:      "location_update",
			OrderID:   ev.OrderID,
			CrewID:    ev.CrewID,
			Lat:       ev.Latitude,
			Lng:       ev.Longitude,
			Timestamp: eventTime(ev.Timestamp),
		}
		g.broadcast(ev.OrderID, ev.CrewID, frame)
	}
}

func (g *Gateway) broadcast(orderID, crewID string, frame any) {
	if orderID != "" {
		g.hub.BroadcastToRoom("order:"+orderID, frame)
	}
	if crewID != "" {
		g.hub.BroadcastToRoom("crew:"+crewID, frame)
	}
}

func (g *Gateway) sendTo(c *Client, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		g.log.Errorw("failed to marshal frame", "error", err)
		return
	}
	g.hub.SendToConn(c, data)
}

func eventTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}
