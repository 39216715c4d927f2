package report

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteConsole renders the payload as a plain-text summary with aligned
// tables, suitable for terminals and run logs.
func WriteConsole(w io.Writer, p *Payload) error {
	fmt.Fprintf(w, "WAF Traffic Report\n")
	fmt.Fprintf(w, "Generated: %s  Run: %s\n", p.GeneratedAt.Format("2006-01-02 15:04:05 MST"), p.RunID)
	fmt.Fprintf(w, "Primary tenant: %s (%s)\n", p.Hostname, p.Identity)
	fmt.Fprintf(w, "Total attacks: %d\n\n", p.TotalAttacks)

	if len(p.Techniques) == 0 {
		fmt.Fprintln(w, "No attack techniques detected.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TECHNIQUE\tSEVERITY\tCOUNT\tRISK\tCATEGORY")
	for _, row := range p.Techniques {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%s\n",
			row.TechniqueID, row.Severity, row.Count, row.RiskScore, row.Category)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(p.Severity.Labels) > 0 {
		fmt.Fprintf(w, "\nSeverity distribution:\n")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for i, label := range p.Severity.Labels {
			fmt.Fprintf(tw, "  %s\t%d\n", label, p.Severity.Values[i])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(p.Tenants) > 0 {
		fmt.Fprintf(w, "\nTenants:\n")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  HOSTNAME\tIDENTITY\tEVENTS")
		for _, tenant := range p.Tenants {
			fmt.Fprintf(tw, "  %s\t%s\t%d\n", tenant.Hostname, tenant.Identity, tenant.Events)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	return nil
}
