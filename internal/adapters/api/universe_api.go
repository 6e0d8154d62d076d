package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/whyando/spacetraders/internal/domain/market"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

// GetAllSystems downloads the full system dump. This is the one endpoint
// that bypasses the {"data": ...} envelope.
func (c *Client) GetAllSystems(ctx context.Context) ([]shared.System, error) {
	var payload []apiSystem
	if err := c.get(ctx, "/systems.json", &payload); err != nil {
		return nil, fmt.Errorf("failed to download systems: %w", err)
	}
	systems := make([]shared.System, 0, len(payload))
	for _, s := range payload {
		systems = append(systems, s.toDomain())
	}
	return systems, nil
}

// GetSystemWaypoints lists a system's waypoints with full trait data.
func (c *Client) GetSystemWaypoints(ctx context.Context, system shared.SystemSymbol) ([]shared.Waypoint, error) {
	payload, err := getPaged[apiWaypoint](ctx, c, fmt.Sprintf("/systems/%s/waypoints", system))
	if err != nil {
		return nil, fmt.Errorf("failed to list waypoints of %s: %w", system, err)
	}
	waypoints := make([]shared.Waypoint, 0, len(payload))
	for _, w := range payload {
		waypoints = append(waypoints, w.toDomain())
	}
	return waypoints, nil
}

// GetMarket fetches a market. The sampled return is nil unless a ship is
// physically present at the waypoint.
func (c *Client) GetMarket(ctx context.Context, waypoint shared.WaypointSymbol) (market.MarketRemote, *market.Market, error) {
	path := fmt.Sprintf("/systems/%s/waypoints/%s/market", waypoint.System(), waypoint)
	var envelope dataEnvelope[apiMarket]
	if err := c.get(ctx, path, &envelope); err != nil {
		return market.MarketRemote{}, nil, fmt.Errorf("failed to get market %s: %w", waypoint, err)
	}
	return envelope.Data.toRemote(), envelope.Data.toSampled(), nil
}

// GetShipyard fetches a shipyard. The sampled return is nil unless a ship
// is physically present at the waypoint.
func (c *Client) GetShipyard(ctx context.Context, waypoint shared.WaypointSymbol) (market.ShipyardRemote, *market.Shipyard, error) {
	path := fmt.Sprintf("/systems/%s/waypoints/%s/shipyard", waypoint.System(), waypoint)
	var envelope dataEnvelope[apiShipyard]
	if err := c.get(ctx, path, &envelope); err != nil {
		return market.ShipyardRemote{}, nil, fmt.Errorf("failed to get shipyard %s: %w", waypoint, err)
	}
	return envelope.Data.toRemote(), envelope.Data.toSampled(), nil
}

// GetJumpGate fetches a jump gate's connections. Charted gates return their
// connection list; uncharted gates return 4001 and are reported as unknown.
func (c *Client) GetJumpGate(ctx context.Context, waypoint shared.WaypointSymbol) (*JumpGate, error) {
	path := fmt.Sprintf("/systems/%s/waypoints/%s/jump-gate", waypoint.System(), waypoint)
	var envelope dataEnvelope[JumpGate]
	if err := c.get(ctx, path, &envelope); err != nil {
		return nil, fmt.Errorf("failed to get jump gate %s: %w", waypoint, err)
	}
	return &envelope.Data, nil
}

// GetConstruction fetches a waypoint's construction site state.
func (c *Client) GetConstruction(ctx context.Context, waypoint shared.WaypointSymbol) (*market.Construction, error) {
	path := fmt.Sprintf("/systems/%s/waypoints/%s/construction", waypoint.System(), waypoint)
	var envelope dataEnvelope[market.Construction]
	if err := c.get(ctx, path, &envelope); err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get construction %s: %w", waypoint, err)
	}
	return &envelope.Data, nil
}
