package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"caja/internal/core"
	"caja/internal/services"
)

func renderDashboard(w io.Writer, d core.Dashboard) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Month\t%s\n", d.Month)
	fmt.Fprintf(tw, "Income\t%s\n", core.FormatAmount(d.Income))
	fmt.Fprintf(tw, "Reinvestment\t%s\n", core.FormatAmount(d.Reinvestment))
	fmt.Fprintf(tw, "Net profit\t%s\n", core.FormatAmount(d.NetProfit))
	fmt.Fprintf(tw, "Salary\t%s\n", core.FormatAmount(d.Salary))
	fmt.Fprintf(tw, "Grams sold\t%s\n", core.FormatGrams(d.GramsSold))
	fmt.Fprintf(tw, "Cash\t%s\n", core.FormatAmount(d.Breakdown.Cash))
	fmt.Fprintf(tw, "Wallet\t%s\n", core.FormatAmount(d.Breakdown.Wallet))
	fmt.Fprintf(tw, "Total balance\t%s\n", core.FormatAmount(d.TotalBalance))
	if c := d.MostActiveClient; c != nil {
		name := c.Name
		if name == "" {
			name = c.ClientID
		}
		fmt.Fprintf(tw, "Most active client\t%s (%d orders, %s)\n", name, c.OrderCount, core.FormatAmount(c.TotalBilled))
	} else {
		fmt.Fprintf(tw, "Most active client\t-\n")
	}
	return tw.Flush()
}

func renderAccounts(w io.Writer, accounts []core.Account) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBALANCE")
	for _, a := range accounts {
		balance := "-"
		if a.Balance.Valid {
			balance = core.FormatAmount(a.Balance.Decimal)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Name, balance)
	}
	fmt.Fprintf(tw, "\tTotal\t%s\n", core.FormatAmount(core.TotalBalance(accounts)))
	return tw.Flush()
}

func renderSnapshots(w io.Writer, snaps []core.MonthSnapshot) error {
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(w, "No snapshots stored")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tINCOME\tREINVESTMENT\tNET\tSALARY\tGRAMS\tTOP CLIENT\tCOMPUTED")
	for _, s := range snaps {
		top := "-"
		if s.TopClientID != "" {
			top = fmt.Sprintf("%s (%d)", s.TopClientID, s.TopClientOrders)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Month,
			core.FormatAmount(s.Income),
			core.FormatAmount(s.Reinvestment),
			core.FormatAmount(s.NetProfit),
			core.FormatAmount(s.Salary),
			core.FormatGrams(s.GramsSold),
			top,
			s.ComputedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func renderViewState(w io.Writer, st services.ViewState) error {
	switch st.State {
	case services.StateLoaded:
		return renderDashboard(w, st.Dashboard)
	case services.StateFailed:
		_, err := fmt.Fprintf(w, "%s: could not load dashboard: %v\n", st.Month, st.Err)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s: loading...\n", st.Month)
		return err
	}
}

// browse loads the view's month, then applies one command per input line
// and renders each settled state. It returns on q, end of input or ctx end.
func browse(ctx context.Context, view *services.MonthView, in io.Reader, out io.Writer) error {
	settle := func(done <-chan struct{}) error {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := renderViewState(out, view.State()); err != nil {
			return err
		}
		_, err := fmt.Fprint(out, "[<] previous  [>] next  [r] reload  [q] quit\n")
		return err
	}

	if err := settle(view.Reload(ctx)); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		var done <-chan struct{}
		switch strings.TrimSpace(scanner.Text()) {
		case "<", "p":
			done = view.Shift(ctx, -1)
		case ">", "n":
			done = view.Shift(ctx, 1)
		case "r":
			done = view.Reload(ctx)
		case "q":
			return nil
		case "":
			continue
		default:
			fmt.Fprintf(out, "unknown command %q\n", scanner.Text())
			continue
		}
		if err := settle(done); err != nil {
			return err
		}
	}
	return scanner.Err()
}
