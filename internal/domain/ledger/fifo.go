package ledger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/restopos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ConsumptionLinePlan is the planned deduction from a single batch
type ConsumptionLinePlan struct {
	BatchID          uuid.UUID
	Quantity         decimal.Decimal // Amount taken from this batch
	UnitCost         decimal.Decimal
	LineCost         decimal.Decimal // Quantity * UnitCost
	RemainingInBatch decimal.Decimal
	FullyConsumed    bool
}

// ConsumptionPlan is the complete result of planning a FIFO consumption.
// Planning is pure: no batch is mutated until ApplyPlan runs inside the
// transaction scope.
type ConsumptionPlan struct {
	Lines           []ConsumptionLinePlan
	TotalQuantity   decimal.Decimal // Quantity the plan can satisfy
	TotalCost       decimal.Decimal
	BlendedUnitCost decimal.Decimal // TotalCost / TotalQuantity, round 4
	Shortfall       decimal.Decimal // Requested quantity the batches cannot cover
	FullySatisfied  bool
}

// SortFIFO orders batches oldest-first by (received_at, id). This is the
// ordering contract every consumption depends on.
func SortFIFO(batches []*Batch) {
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].Before(batches[j])
	})
}

// PlanConsumption walks the product's active batches oldest-first and plans
// how the requested quantity would be taken from them. Inactive batches are
// skipped; expired-but-active stock is still consumable (expiry is a
// classification concern, receiving is where expired stock is refused).
func PlanConsumption(requested decimal.Decimal, batches []*Batch) (*ConsumptionPlan, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	ordered := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if b.HasStock() {
			ordered = append(ordered, b)
		}
	}
	SortFIFO(ordered)

	plan := &ConsumptionPlan{
		Lines:         make([]ConsumptionLinePlan, 0, len(ordered)),
		TotalQuantity: decimal.Zero,
		TotalCost:     decimal.Zero,
	}

	remaining := requested
	for _, batch := range ordered {
		if remaining.IsZero() {
			break
		}

		take := decimal.Min(remaining, batch.Quantity)
		left := batch.Quantity.Sub(take)
		lineCost := take.Mul(batch.UnitCost)

		plan.Lines = append(plan.Lines, ConsumptionLinePlan{
			BatchID:          batch.ID,
			Quantity:         take,
			UnitCost:         batch.UnitCost,
			LineCost:         lineCost,
			RemainingInBatch: left,
			FullyConsumed:    left.IsZero(),
		})

		plan.TotalQuantity = plan.TotalQuantity.Add(take)
		plan.TotalCost = plan.TotalCost.Add(lineCost)
		remaining = remaining.Sub(take)
	}

	plan.Shortfall = remaining
	plan.FullySatisfied = remaining.IsZero()
	if plan.TotalQuantity.GreaterThan(decimal.Zero) {
		plan.BlendedUnitCost = plan.TotalCost.Div(plan.TotalQuantity).Round(4)
	}

	return plan, nil
}

// ApplyPlan executes the planned deductions against the batch entities.
// Every line must match a batch exactly; a mismatch means the batch set
// changed since planning and the whole operation must be aborted.
func ApplyPlan(batches []*Batch, plan *ConsumptionPlan) error {
	if plan == nil {
		return shared.NewDomainError("INVALID_PLAN", "Consumption plan cannot be nil")
	}

	byID := make(map[uuid.UUID]*Batch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}

	for _, line := range plan.Lines {
		batch, ok := byID[line.BatchID]
		if !ok {
			return shared.NewDomainError("BATCH_NOT_FOUND", "Planned batch not found: "+line.BatchID.String())
		}
		if err := batch.Deduct(line.Quantity); err != nil {
			return err
		}
		if !batch.Quantity.Equal(line.RemainingInBatch) {
			return shared.NewDomainError("PLAN_MISMATCH", "Batch state diverged from consumption plan")
		}
	}
	return nil
}

// AvailableQuantity sums the remaining quantity over active batches
func AvailableQuantity(batches []*Batch) decimal.Decimal {
	total := decimal.Zero
	for _, b := range batches {
		if b.HasStock() {
			total = total.Add(b.Quantity)
		}
	}
	return total
}
