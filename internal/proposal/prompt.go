package proposal

import (
	"fmt"
	"strings"

	"github.com/Simplici0/slabquote/internal/estimate"
)

const systemPrompt = `You are an estimator for a residential concrete contractor.
Write short, friendly, professional proposals for slab pours.
Use only the figures you are given. Do not invent prices, dates or warranties.
Plain text only, no markdown.`

// BuildProposalPrompt renders the estimate as the user message for the model.
func BuildProposalPrompt(est estimate.Result, clientName string) string {
	name := strings.TrimSpace(clientName)
	if name == "" {
		name = "the client"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a concise proposal (under 180 words) for %s.\n\n", name)

	fmt.Fprintf(&b, "Slab: %.2f ft x %.2f ft (%.2f sq ft), %.2f in thick, %.3f cubic yards of concrete.\n",
		est.Inputs.WidthFt, est.Inputs.LengthFt, est.Inputs.AreaSqft, est.Inputs.ThicknessIn, est.Inputs.VolumeCY)

	b.WriteString("\nLine items:\n")
	fmt.Fprintf(&b, "- Concrete: $%.2f\n", est.LineItems.ConcreteCost)
	fmt.Fprintf(&b, "- Rebar: $%.2f\n", est.LineItems.RebarCost)
	fmt.Fprintf(&b, "- Forms: $%.2f\n", est.LineItems.FormsCost)
	if est.LineItems.OtherMaterials != 0 {
		fmt.Fprintf(&b, "- Other materials: $%.2f\n", est.LineItems.OtherMaterials)
	}
	fmt.Fprintf(&b, "- Labor: %.2f hours, $%.2f\n", est.LineItems.LaborHours, est.LineItems.LaborCost)
	if est.Params.Tearout {
		fmt.Fprintf(&b, "- Tear-out of existing slab: $%.2f\n", est.LineItems.TearoutCost)
	}

	b.WriteString("\nSummary:\n")
	fmt.Fprintf(&b, "- Subtotal: $%.2f\n", est.Summary.Subtotal)
	fmt.Fprintf(&b, "- Overhead (%.0f%%): $%.2f\n", est.Params.OverheadPct*100, est.Summary.Overhead)
	fmt.Fprintf(&b, "- Profit (%.0f%%): $%.2f\n", est.Params.ProfitPct*100, est.Summary.Profit)
	fmt.Fprintf(&b, "- Total: $%.2f\n", est.Summary.Total)

	b.WriteString("\nDescribe the scope of work, then state the total price. Close with a line inviting questions.")
	return b.String()
}
