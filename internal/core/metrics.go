package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

// Period is a closed time range [Start, End].
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within the period, both ends inclusive.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// MetricsInput is everything the aggregator needs. It never reads the store itself.
type MetricsInput struct {
	Period      Period
	CostHistory map[string][]CostRecord
	Orders      []Order
	Entries     []FinanceEntry
	// TopN limits the product ranking; zero or negative keeps every product.
	TopN int
	// Location decides which calendar day an instant belongs to. Nil means UTC.
	Location *time.Location
}

type Totals struct {
	GrossSales      decimal.Decimal `json:"gross_sales"`
	CostOfSales     decimal.Decimal `json:"cost_of_sales"`
	GrossProfit     decimal.Decimal `json:"gross_profit"`
	GrossMarginPct  decimal.Decimal `json:"gross_margin_pct"`
	AverageTicket   decimal.Decimal `json:"average_ticket"`
	ConfirmedOrders int             `json:"confirmed_orders"`
	TotalOrders     int             `json:"total_orders"`
	CancelledOrders int             `json:"cancelled_orders"`
	Income          decimal.Decimal `json:"income"`
	Expense         decimal.Decimal `json:"expense"`
	NetCash         decimal.Decimal `json:"net_cash"`
}

type DailyMetrics struct {
	Date    string          `json:"date"`
	Orders  int             `json:"orders"`
	Sales   decimal.Decimal `json:"sales"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type ChannelMetrics struct {
	Channel Channel         `json:"channel"`
	Orders  int             `json:"orders"`
	Sales   decimal.Decimal `json:"sales"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
}

type ProductRanking struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Units       int             `json:"units"`
	Revenue     decimal.Decimal `json:"revenue"`
	Cost        decimal.Decimal `json:"cost"`
	Profit      decimal.Decimal `json:"profit"`
}

type StatusCounts struct {
	Pending    int `json:"pending"`
	Confirmed  int `json:"confirmed"`
	Dispatched int `json:"dispatched"`
	Cancelled  int `json:"cancelled"`
}

type MetricsReport struct {
	Period       Period           `json:"period"`
	Totals       Totals           `json:"totals"`
	Daily        []DailyMetrics   `json:"daily"`
	ByChannel    []ChannelMetrics `json:"by_channel"`
	TopProducts  []ProductRanking `json:"top_products"`
	StatusCounts StatusCounts     `json:"status_counts"`
}

// CostAt returns the latest recorded cost at or before at. history must be sorted by
// RecordedAt ascending. An instant before every record falls back to the oldest one;
// an empty history costs zero.
func CostAt(history []CostRecord, at time.Time) decimal.Decimal {
	if len(history) == 0 {
		return decimal.Zero
	}
	i := sort.Search(len(history), func(i int) bool {
		return history[i].RecordedAt.After(at)
	})
	if i == 0 {
		return history[0].UnitCost
	}
	return history[i-1].UnitCost
}

// ComputeFinanceMetrics folds orders and finance entries into a report. It is pure:
// the same input always yields the same report, and missing cost history is never
// an error.
func ComputeFinanceMetrics(in MetricsInput) MetricsReport {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}

	report := MetricsReport{
		Period: in.Period,
		Totals: Totals{
			GrossSales:     decimal.Zero,
			CostOfSales:    decimal.Zero,
			GrossProfit:    decimal.Zero,
			GrossMarginPct: decimal.Zero,
			AverageTicket:  decimal.Zero,
			Income:         decimal.Zero,
			Expense:        decimal.Zero,
			NetCash:        decimal.Zero,
		},
		Daily:       []DailyMetrics{},
		ByChannel:   []ChannelMetrics{},
		TopProducts: []ProductRanking{},
	}

	days := make(map[string]*DailyMetrics)
	if !in.Period.End.Before(in.Period.Start) {
		first := startOfDay(in.Period.Start.In(loc))
		last := startOfDay(in.Period.End.In(loc))
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			report.Daily = append(report.Daily, DailyMetrics{
				Date:    d.Format(dayLayout),
				Sales:   decimal.Zero,
				Cost:    decimal.Zero,
				Profit:  decimal.Zero,
				Income:  decimal.Zero,
				Expense: decimal.Zero,
				Net:     decimal.Zero,
			})
		}
		for i := range report.Daily {
			days[report.Daily[i].Date] = &report.Daily[i]
		}
	}

	channels := make(map[Channel]*ChannelMetrics)
	products := make(map[string]*ProductRanking)

	for _, o := range in.Orders {
		if !in.Period.Contains(o.CreatedAt) {
			continue
		}
		report.Totals.TotalOrders++
		switch o.Status {
		case StatusPending:
			report.StatusCounts.Pending++
		case StatusConfirmed:
			report.StatusCounts.Confirmed++
		case StatusDispatched:
			report.StatusCounts.Dispatched++
		case StatusCancelled:
			report.StatusCounts.Cancelled++
			report.Totals.CancelledOrders++
		}
		if !o.Qualifies() {
			continue
		}
		report.Totals.ConfirmedOrders++

		sales, cost := decimal.Zero, decimal.Zero
		for _, l := range o.Lines {
			revenue := l.Subtotal()
			lineCost := lineUnitCost(l, in.CostHistory, o.CreatedAt).Mul(decimal.NewFromInt(int64(l.Quantity)))
			sales = sales.Add(revenue)
			cost = cost.Add(lineCost)

			pr, ok := products[l.ProductID]
			if !ok {
				pr = &ProductRanking{ProductID: l.ProductID, ProductName: l.ProductName, Revenue: decimal.Zero, Cost: decimal.Zero}
				products[l.ProductID] = pr
			}
			pr.Units += l.Quantity
			pr.Revenue = pr.Revenue.Add(revenue)
			pr.Cost = pr.Cost.Add(lineCost)
		}
		profit := sales.Sub(cost)

		report.Totals.GrossSales = report.Totals.GrossSales.Add(sales)
		report.Totals.CostOfSales = report.Totals.CostOfSales.Add(cost)

		if d, ok := days[o.CreatedAt.In(loc).Format(dayLayout)]; ok {
			d.Orders++
			d.Sales = d.Sales.Add(sales)
			d.Cost = d.Cost.Add(cost)
			d.Profit = d.Profit.Add(profit)
		}

		ch, ok := channels[o.Channel]
		if !ok {
			ch = &ChannelMetrics{Channel: o.Channel, Sales: decimal.Zero, Cost: decimal.Zero, Profit: decimal.Zero}
			channels[o.Channel] = ch
		}
		ch.Orders++
		ch.Sales = ch.Sales.Add(sales)
		ch.Cost = ch.Cost.Add(cost)
		ch.Profit = ch.Profit.Add(profit)
	}

	for _, e := range in.Entries {
		if !in.Period.Contains(e.CreatedAt) {
			continue
		}
		d := days[e.CreatedAt.In(loc).Format(dayLayout)]
		switch e.Kind {
		case EntryIncome:
			report.Totals.Income = report.Totals.Income.Add(e.Amount)
			if d != nil {
				d.Income = d.Income.Add(e.Amount)
			}
		case EntryExpense:
			report.Totals.Expense = report.Totals.Expense.Add(e.Amount)
			if d != nil {
				d.Expense = d.Expense.Add(e.Amount)
			}
		}
	}

	t := &report.Totals
	t.GrossSales = RoundMoney(t.GrossSales)
	t.CostOfSales = RoundMoney(t.CostOfSales)
	t.GrossProfit = t.GrossSales.Sub(t.CostOfSales)
	if t.GrossSales.IsPositive() {
		t.GrossMarginPct = t.GrossProfit.Div(t.GrossSales).Mul(hundred).Round(2)
	}
	if t.ConfirmedOrders > 0 {
		t.AverageTicket = RoundMoney(t.GrossSales.Div(decimal.NewFromInt(int64(t.ConfirmedOrders))))
	}
	t.NetCash = t.Income.Sub(t.Expense)

	for i := range report.Daily {
		d := &report.Daily[i]
		d.Sales = RoundMoney(d.Sales)
		d.Cost = RoundMoney(d.Cost)
		d.Profit = RoundMoney(d.Profit)
		d.Net = d.Income.Sub(d.Expense)
	}

	for _, ch := range channels {
		ch.Sales = RoundMoney(ch.Sales)
		ch.Cost = RoundMoney(ch.Cost)
		ch.Profit = RoundMoney(ch.Profit)
		report.ByChannel = append(report.ByChannel, *ch)
	}
	sort.Slice(report.ByChannel, func(i, j int) bool {
		return report.ByChannel[i].Channel < report.ByChannel[j].Channel
	})

	for _, pr := range products {
		pr.Revenue = RoundMoney(pr.Revenue)
		pr.Cost = RoundMoney(pr.Cost)
		pr.Profit = pr.Revenue.Sub(pr.Cost)
		report.TopProducts = append(report.TopProducts, *pr)
	}
	sort.Slice(report.TopProducts, func(i, j int) bool {
		a, b := report.TopProducts[i], report.TopProducts[j]
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return a.ProductID < b.ProductID
	})
	if in.TopN > 0 && len(report.TopProducts) > in.TopN {
		report.TopProducts = report.TopProducts[:in.TopN]
	}

	return report
}

// lineUnitCost prefers the cost captured when stock was deducted.
func lineUnitCost(l OrderLine, history map[string][]CostRecord, at time.Time) decimal.Decimal {
	if l.UnitCost != nil {
		return *l.UnitCost
	}
	return CostAt(history[l.ProductID], at)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayPeriod spans whole calendar days from..to, taking each date as written and
// placing it in loc.
func DayPeriod(from, to time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, loc)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
	return Period{Start: start, End: end}
}
