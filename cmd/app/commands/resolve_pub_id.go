package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	stateDomain "github.com/allisson/paidleave/internal/state/domain"
)

// PubIDResolver maps PUB individual ids to the entity they identify.
type PubIDResolver interface {
	ResolvePubIndividualID(ctx context.Context, text string) (stateDomain.EntityRef, error)
}

// RunResolvePubID prints the entity a PUB individual id reported back by PUB refers to.
func RunResolvePubID(
	ctx context.Context,
	resolver PubIDResolver,
	writer io.Writer,
	pubID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	ref, err := resolver.ResolvePubIndividualID(ctx, pubID)
	if err != nil {
		return fmt.Errorf("failed to resolve pub individual id %q: %w", pubID, err)
	}

	if format == "json" {
		return writeJSON(writer, map[string]interface{}{
			"pub_individual_id": strings.TrimSpace(pubID),
			"kind":              string(ref.Kind),
			"id":                ref.ID.String(),
		})
	}

	_, _ = fmt.Fprintf(writer, "%s %s\n", ref.Kind, ref.ID)
	return nil
}
