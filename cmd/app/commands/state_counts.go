package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

// StateCounter counts entities per current state.
type StateCounter interface {
	CountByState(ctx context.Context, flowID stateDomain.FlowID) (map[stateDomain.StateID]int64, error)
}

// RunStateCounts prints how many entities of the flow are currently in each of its states.
// States without entities are printed with zero.
func RunStateCounts(
	ctx context.Context,
	counter StateCounter,
	writer io.Writer,
	flowID int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	flow, err := stateDomain.GetFlow(stateDomain.FlowID(flowID))
	if err != nil {
		return err
	}

	counts, err := counter.CountByState(ctx, flow.ID)
	if err != nil {
		return fmt.Errorf("failed to count states: %w", err)
	}

	states := stateDomain.StatesOf(flow.ID)

	if format == "json" {
		result := make([]map[string]interface{}, 0, len(states))
		for _, state := range states {
			result = append(result, map[string]interface{}{
				"state_id":    int(state.ID),
				"description": state.Description,
				"terminal":    state.Terminal,
				"count":       counts[state.ID],
			})
		}
		return writeJSON(writer, map[string]interface{}{
			"flow_id": int(flow.ID),
			"flow":    flow.Name,
			"states":  result,
		})
	}

	_, _ = fmt.Fprintf(writer, "%s (flow %d)\n", flow.Name, flow.ID)
	for _, state := range states {
		_, _ = fmt.Fprintf(
			writer,
			"  %-5s %-55s %d\n",
			strconv.Itoa(int(state.ID)),
			state.Description,
			counts[state.ID],
		)
	}
	return nil
}
