package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fulfillment-engine/internal/app"
	"fulfillment-engine/internal/core"
)

const usage = "Available: price <product-id> <qty>, seq <namespace>, status <order-id> <status>, " +
	"cancel <order-id>, metrics <from> <to> [top], balance [from] [to], products"

// Run executes a one-shot CLI command and writes its report to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", usage)
	}

	switch args[0] {
	case "price", "quote":
		if len(args) < 3 {
			return fmt.Errorf("usage: app price <product-id> <qty>")
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("qty must be an integer: %w", err)
		}
		result, err := svc.QuotePrice(ctx, args[1], qty)
		if err != nil {
			return err
		}
		printQuote(out, result)

	case "seq", "sequence":
		if len(args) < 2 {
			return fmt.Errorf("usage: app seq <namespace>")
		}
		result, err := svc.NextSequence(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d\n", result.Namespace, result.Value)

	case "status":
		if len(args) < 3 {
			return fmt.Errorf("usage: app status <order-id> <pending|confirmed|dispatched|cancelled>")
		}
		result, err := svc.SetOrderStatus(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		printOrder(out, result.Order)

	case "cancel":
		if len(args) < 2 {
			return fmt.Errorf("usage: app cancel <order-id>")
		}
		result, err := svc.CancelOrder(ctx, args[1])
		if err != nil {
			return err
		}
		printOrder(out, result.Order)

	case "metrics":
		if len(args) < 3 {
			return fmt.Errorf("usage: app metrics <from YYYY-MM-DD> <to YYYY-MM-DD> [top]")
		}
		req := app.MetricsRequest{FromDate: args[1], ToDate: args[2]}
		if len(args) > 3 {
			top, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("top must be an integer: %w", err)
			}
			req.Top = top
		}
		report, err := svc.FinanceMetrics(ctx, req)
		if err != nil {
			return err
		}
		printMetrics(out, report)

	case "balance", "bal":
		var from, to string
		if len(args) > 1 {
			from = args[1]
		}
		if len(args) > 2 {
			to = args[2]
		}
		result, err := svc.GetBalance(ctx, from, to)
		if err != nil {
			return err
		}
		printBalance(out, result)

	case "products":
		result, err := svc.ListProducts(ctx)
		if err != nil {
			return err
		}
		printProducts(out, result.Products)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}

func printQuote(out io.Writer, r *core.PricingResult) {
	fmt.Fprintf(out, "Product    : %s\n", r.ProductID)
	fmt.Fprintf(out, "Quantity   : %d\n", r.Quantity)
	fmt.Fprintf(out, "List price : %s\n", r.ListPrice.StringFixed(2))
	fmt.Fprintf(out, "Unit price : %s\n", r.FinalPrice.StringFixed(2))
	if r.OfferApplied && r.Offer != nil {
		fmt.Fprintf(out, "Offer      : %s (-%s%%, saves %s)\n", r.Offer.Name, r.DiscountPct.StringFixed(2), r.SavingsTotal.StringFixed(2))
	}
	if r.VolumeHint != nil {
		fmt.Fprintf(out, "Hint       : buy %d more for %s each (%s)\n",
			r.VolumeHint.UnitsMissing, r.VolumeHint.UnitPrice.StringFixed(2), r.VolumeHint.OfferName)
	}
}

func printOrder(out io.Writer, o *core.Order) {
	fmt.Fprintf(out, "Order %s  %s  %s %s\n", o.ID, strings.ToUpper(string(o.Status)), o.Total.StringFixed(2), o.Currency)
	fmt.Fprintf(out, "  stock applied: %t  finance applied: %t\n", o.StockApplied, o.FinanceApplied)
}

func printMetrics(out io.Writer, r *core.MetricsReport) {
	t := r.Totals
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  FINANCE METRICS  %s .. %s\n", r.Period.Start.Format("2006-01-02"), r.Period.End.Format("2006-01-02"))
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-24s %15s\n", "Gross sales", t.GrossSales.StringFixed(2))
	fmt.Fprintf(out, "  %-24s %15s\n", "Cost of sales", t.CostOfSales.StringFixed(2))
	fmt.Fprintf(out, "  %-24s %15s\n", "Gross profit", t.GrossProfit.StringFixed(2))
	fmt.Fprintf(out, "  %-24s %14s%%\n", "Gross margin", t.GrossMarginPct.StringFixed(2))
	fmt.Fprintf(out, "  %-24s %15s\n", "Average ticket", t.AverageTicket.StringFixed(2))
	fmt.Fprintf(out, "  %-24s %15d\n", "Confirmed orders", t.ConfirmedOrders)
	fmt.Fprintf(out, "  %-24s %15d\n", "Total orders", t.TotalOrders)
	fmt.Fprintf(out, "  %-24s %15s\n", "Net cash", t.NetCash.StringFixed(2))
	fmt.Fprintln(out, strings.Repeat("-", 62))
	fmt.Fprintf(out, "  %-12s %6s %12s %12s %12s\n", "DATE", "ORDERS", "SALES", "PROFIT", "NET")
	for _, d := range r.Daily {
		fmt.Fprintf(out, "  %-12s %6d %12s %12s %12s\n", d.Date, d.Orders, d.Sales.StringFixed(2), d.Profit.StringFixed(2), d.Net.StringFixed(2))
	}
	if len(r.TopProducts) > 0 {
		fmt.Fprintln(out, strings.Repeat("-", 62))
		fmt.Fprintf(out, "  %-30s %6s %12s\n", "TOP PRODUCTS", "UNITS", "REVENUE")
		for _, p := range r.TopProducts {
			fmt.Fprintf(out, "  %-30s %6d %12s\n", p.ProductName, p.Units, p.Revenue.StringFixed(2))
		}
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printBalance(out io.Writer, r *app.BalanceResult) {
	p := r.Position
	fmt.Fprintf(out, "  %-10s %15s\n", "Income", p.Income.StringFixed(2))
	fmt.Fprintf(out, "  %-10s %15s\n", "Expense", p.Expense.StringFixed(2))
	fmt.Fprintf(out, "  %-10s %15s\n", "Net", p.Net.StringFixed(2))
	fmt.Fprintf(out, "  %-10s %15d\n", "Entries", p.Entries)
}

func printProducts(out io.Writer, products []core.Product) {
	fmt.Fprintf(out, "  %-36s %-12s %-24s %8s %10s\n", "ID", "CODE", "NAME", "ON HAND", "PRICE")
	for _, p := range products {
		fmt.Fprintf(out, "  %-36s %-12s %-24s %8d %10s\n", p.ID, p.Code, p.Name, p.OnHand, p.ListPrice.StringFixed(2))
	}
}
