package agent

import (
	"context"
	"log"
	"time"

	"github.com/whyando/spacetraders/internal/domain/fleet"
)

// Repeated contract failures back off for this long before retrying.
const contractFailureBackoff = 10 * time.Minute

// contractTick advances the active contract one step: accept it if offered,
// fulfill it once every deliverable is complete. Deliverable sourcing itself
// rides on logistics tasks. Failures are rate-limited through an epoch
// counter so a broken contract does not spam the API every tick.
func (c *Controller) contractTick(ctx context.Context) {
	if c.cfg.Debug.DisableContractTasks {
		return
	}

	c.contractMu.Lock()
	defer c.contractMu.Unlock()

	if !c.lastContractFailure.IsZero() && c.clock.Now().Sub(c.lastContractFailure) < contractFailureBackoff {
		return
	}

	if err := c.contractStep(ctx); err != nil {
		c.contractFailEpoch++
		c.lastContractFailure = c.clock.Now()
		log.Printf("[%s] contract tick failed (epoch %d): %v", c.callsign, c.contractFailEpoch, err)
	}
}

func (c *Controller) contractStep(ctx context.Context) error {
	if c.contract == nil {
		contracts, err := c.client.GetContracts(ctx)
		if err != nil {
			return err
		}
		for i := range contracts {
			if !contracts[i].Fulfilled {
				c.contract = &contracts[i]
				break
			}
		}
		if c.contract == nil {
			return nil
		}
	}

	if !c.contract.Accepted {
		result, err := c.client.AcceptContract(ctx, c.contract.ID)
		if err != nil {
			return err
		}
		c.UpdateAgent(&result.Agent)
		c.contract = &result.Contract
		log.Printf("[%s] accepted contract %s", c.callsign, c.contract.ID)
	}

	if contractDeliverablesComplete(c.contract) {
		result, err := c.client.FulfillContract(ctx, c.contract.ID)
		if err != nil {
			return err
		}
		c.UpdateAgent(&result.Agent)
		log.Printf("[%s] fulfilled contract %s", c.callsign, c.contract.ID)
		c.contract = nil
	}
	return nil
}

func contractDeliverablesComplete(contract *fleet.Contract) bool {
	for _, d := range contract.Terms.Deliver {
		if d.UnitsFulfilled < d.UnitsRequired {
			return false
		}
	}
	return true
}

// UpdateContract replaces the contract cache after a delivery.
// Implements the ship controller's AgentUpdater.
func (c *Controller) UpdateContract(contract *fleet.Contract) {
	if contract == nil {
		return
	}
	c.contractMu.Lock()
	c.contract = contract
	c.contractMu.Unlock()
}
