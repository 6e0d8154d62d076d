package api

import (
	"context"
	"fmt"

	"github.com/whyando/spacetraders/internal/domain/fleet"
	"github.com/whyando/spacetraders/internal/domain/shared"
)

func shipPath(ship, suffix string) string {
	return fmt.Sprintf("/my/ships/%s/%s", ship, suffix)
}

// Orbit moves the ship to orbit. Idempotent server-side.
func (c *Client) Orbit(ctx context.Context, ship string) (*fleet.ShipNav, error) {
	var envelope dataEnvelope[struct {
		Nav fleet.ShipNav `json:"nav"`
	}]
	if err := c.post(ctx, shipPath(ship, "orbit"), nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to orbit %s: %w", ship, err)
	}
	return &envelope.Data.Nav, nil
}

// Dock docks the ship. Idempotent server-side.
func (c *Client) Dock(ctx context.Context, ship string) (*fleet.ShipNav, error) {
	var envelope dataEnvelope[struct {
		Nav fleet.ShipNav `json:"nav"`
	}]
	if err := c.post(ctx, shipPath(ship, "dock"), nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to dock %s: %w", ship, err)
	}
	return &envelope.Data.Nav, nil
}

// SetFlightMode is PATCH /my/ships/{s}/nav.
func (c *Client) SetFlightMode(ctx context.Context, ship string, mode fleet.FlightMode) (*fleet.ShipNav, error) {
	body := map[string]fleet.FlightMode{"flightMode": mode}
	var envelope dataEnvelope[fleet.ShipNav]
	if err := c.patch(ctx, shipPath(ship, "nav"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to set flight mode of %s: %w", ship, err)
	}
	return &envelope.Data, nil
}

// Navigate starts intra-system travel to a waypoint.
func (c *Client) Navigate(ctx context.Context, ship string, waypoint shared.WaypointSymbol) (*NavResult, error) {
	body := map[string]shared.WaypointSymbol{"waypointSymbol": waypoint}
	var envelope dataEnvelope[NavResult]
	if err := c.post(ctx, shipPath(ship, "navigate"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to navigate %s to %s: %w", ship, waypoint, err)
	}
	return &envelope.Data, nil
}

// Warp starts inter-system travel to a waypoint in another system.
func (c *Client) Warp(ctx context.Context, ship string, waypoint shared.WaypointSymbol) (*WarpResult, error) {
	body := map[string]shared.WaypointSymbol{"waypointSymbol": waypoint}
	var envelope dataEnvelope[WarpResult]
	if err := c.post(ctx, shipPath(ship, "warp"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to warp %s to %s: %w", ship, waypoint, err)
	}
	return &envelope.Data, nil
}

// Jump traverses a jump gate to another gate waypoint.
func (c *Client) Jump(ctx context.Context, ship string, waypoint shared.WaypointSymbol) (*WarpResult, error) {
	body := map[string]shared.WaypointSymbol{"waypointSymbol": waypoint}
	var envelope dataEnvelope[WarpResult]
	if err := c.post(ctx, shipPath(ship, "jump"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to jump %s to %s: %w", ship, waypoint, err)
	}
	return &envelope.Data, nil
}

// Refuel buys fuel at the current waypoint. fromCargo draws from carried
// FUEL goods instead of the local market.
func (c *Client) Refuel(ctx context.Context, ship string, units int64, fromCargo bool) (*RefuelResult, error) {
	body := map[string]interface{}{
		"units":     units,
		"fromCargo": fromCargo,
	}
	var envelope dataEnvelope[RefuelResult]
	if err := c.post(ctx, shipPath(ship, "refuel"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to refuel %s: %w", ship, err)
	}
	return &envelope.Data, nil
}

// Survey creates mining surveys of the asteroid the ship orbits.
func (c *Client) Survey(ctx context.Context, ship string) (*SurveyResult, error) {
	var envelope dataEnvelope[SurveyResult]
	if err := c.post(ctx, shipPath(ship, "survey"), nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to survey with %s: %w", ship, err)
	}
	return &envelope.Data, nil
}

// ExtractSurvey extracts against a specific survey. Callers must inspect
// returned APIError codes 4221/4224 for exhausted/expired surveys.
func (c *Client) ExtractSurvey(ctx context.Context, ship string, survey *fleet.Survey) (*ExtractionResult, error) {
	var envelope dataEnvelope[ExtractionResult]
	if err := c.post(ctx, shipPath(ship, "extract/survey"), survey, &envelope); err != nil {
		return nil, err
	}
	return &envelope.Data, nil
}

// Siphon extracts gas from the gas giant the ship orbits.
func (c *Client) Siphon(ctx context.Context, ship string) (*ExtractionResult, error) {
	var envelope dataEnvelope[ExtractionResult]
	if err := c.post(ctx, shipPath(ship, "siphon"), nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to siphon with %s: %w", ship, err)
	}
	return &envelope.Data, nil
}

// Jettison discards cargo overboard.
func (c *Client) Jettison(ctx context.Context, ship, good string, units int64) (*fleet.ShipCargo, error) {
	body := map[string]interface{}{
		"symbol": good,
		"units":  units,
	}
	var envelope dataEnvelope[struct {
		Cargo fleet.ShipCargo `json:"cargo"`
	}]
	if err := c.post(ctx, shipPath(ship, "jettison"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to jettison %d %s from %s: %w", units, good, ship, err)
	}
	return &envelope.Data.Cargo, nil
}

// ScrapShip sells the ship for scrap at the shipyard it is docked at.
func (c *Client) ScrapShip(ctx context.Context, ship string) (*ScrapResult, error) {
	var envelope dataEnvelope[ScrapResult]
	if err := c.post(ctx, shipPath(ship, "scrap"), nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to scrap %s: %w", ship, err)
	}
	return &envelope.Data, nil
}

// NegotiateContract requests a fresh contract while docked at a faction
// waypoint.
func (c *Client) NegotiateContract(ctx context.Context, ship string) (*fleet.Contract, error) {
	var envelope dataEnvelope[struct {
		Contract fleet.Contract `json:"contract"`
	}]
	if err := c.post(ctx, shipPath(ship, "negotiate/contract"), nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to negotiate contract with %s: %w", ship, err)
	}
	return &envelope.Data.Contract, nil
}

// PurchaseShip buys a ship of the given model at a shipyard waypoint.
func (c *Client) PurchaseShip(ctx context.Context, shipType string, waypoint shared.WaypointSymbol) (*PurchaseShipResult, error) {
	body := map[string]interface{}{
		"shipType":       shipType,
		"waypointSymbol": waypoint,
	}
	var envelope dataEnvelope[PurchaseShipResult]
	if err := c.post(ctx, "/my/ships", body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to purchase %s at %s: %w", shipType, waypoint, err)
	}
	return &envelope.Data, nil
}

// PurchaseCargo buys goods at the docked market.
func (c *Client) PurchaseCargo(ctx context.Context, ship, good string, units int64) (*TradeResult, error) {
	body := map[string]interface{}{
		"symbol": good,
		"units":  units,
	}
	var envelope dataEnvelope[TradeResult]
	if err := c.post(ctx, shipPath(ship, "purchase"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to purchase %d %s with %s: %w", units, good, ship, err)
	}
	return &envelope.Data, nil
}

// SellCargo sells goods at the docked market.
func (c *Client) SellCargo(ctx context.Context, ship, good string, units int64) (*TradeResult, error) {
	body := map[string]interface{}{
		"symbol": good,
		"units":  units,
	}
	var envelope dataEnvelope[TradeResult]
	if err := c.post(ctx, shipPath(ship, "sell"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to sell %d %s with %s: %w", units, good, ship, err)
	}
	return &envelope.Data, nil
}

// TransferCargo moves goods between two of the agent's ships at the same
// waypoint.
func (c *Client) TransferCargo(ctx context.Context, fromShip, toShip, good string, units int64) (*fleet.ShipCargo, error) {
	body := map[string]interface{}{
		"tradeSymbol": good,
		"units":       units,
		"shipSymbol":  toShip,
	}
	var envelope dataEnvelope[struct {
		Cargo fleet.ShipCargo `json:"cargo"`
	}]
	if err := c.post(ctx, shipPath(fromShip, "transfer"), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to transfer %d %s from %s to %s: %w", units, good, fromShip, toShip, err)
	}
	return &envelope.Data.Cargo, nil
}

// AcceptContract accepts a contract offer.
func (c *Client) AcceptContract(ctx context.Context, contractID string) (*ContractAgentResult, error) {
	var envelope dataEnvelope[ContractAgentResult]
	if err := c.post(ctx, fmt.Sprintf("/my/contracts/%s/accept", contractID), nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to accept contract %s: %w", contractID, err)
	}
	return &envelope.Data, nil
}

// FulfillContract fulfills a fully delivered contract.
func (c *Client) FulfillContract(ctx context.Context, contractID string) (*ContractAgentResult, error) {
	var envelope dataEnvelope[ContractAgentResult]
	if err := c.post(ctx, fmt.Sprintf("/my/contracts/%s/fulfill", contractID), nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to fulfill contract %s: %w", contractID, err)
	}
	return &envelope.Data, nil
}

// DeliverContract delivers goods from the ship's cargo toward a contract.
func (c *Client) DeliverContract(ctx context.Context, contractID, ship, good string, units int64) (*ContractDeliverResult, error) {
	body := map[string]interface{}{
		"shipSymbol":  ship,
		"tradeSymbol": good,
		"units":       units,
	}
	var envelope dataEnvelope[ContractDeliverResult]
	if err := c.post(ctx, fmt.Sprintf("/my/contracts/%s/deliver", contractID), body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to deliver contract %s: %w", contractID, err)
	}
	return &envelope.Data, nil
}

// SupplyConstruction delivers goods from the ship's cargo to a construction
// site.
func (c *Client) SupplyConstruction(ctx context.Context, waypoint shared.WaypointSymbol, ship, good string, units int64) (*SupplyConstructionResult, error) {
	body := map[string]interface{}{
		"shipSymbol":  ship,
		"tradeSymbol": good,
		"units":       units,
	}
	path := fmt.Sprintf("/systems/%s/waypoints/%s/construction/supply", waypoint.System(), waypoint)
	var envelope dataEnvelope[SupplyConstructionResult]
	if err := c.post(ctx, path, body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to supply construction at %s: %w", waypoint, err)
	}
	return &envelope.Data, nil
}
