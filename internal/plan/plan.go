package plan

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"sor-router/internal/book"
)

// Fill 表示执行计划中的一笔成交，价格为场所报出的原始价格。
type Fill struct {
	Venue  string
	Price  float64
	Volume float64
}

// FeeTable 为场所到吃单费率的只读映射。
// 路由器构造后不再修改，可在多个计划间共享。
type FeeTable map[string]float64

// Plan 按顺序累积成交并派生费用与成交指标。
// 构造期间仅追加，此后只读。
type Plan struct {
	side          book.Side
	requestedSize float64
	fees          FeeTable
	fills         []Fill
}

// New 创建空的执行计划。
func New(side book.Side, requestedSize float64, fees FeeTable) *Plan {
	return &Plan{
		side:          side,
		requestedSize: requestedSize,
		fees:          fees,
	}
}

// Add 追加一笔成交。场所必须存在于费率表中，数量必须大于0。
func (p *Plan) Add(fill Fill) error {
	if fill.Volume <= 0 {
		return fmt.Errorf("plan: 成交数量必须大于0, 实际为 %v", fill.Volume)
	}
	if _, ok := p.fees[fill.Venue]; !ok {
		return fmt.Errorf("plan: 未知场所 %q", fill.Venue)
	}
	p.fills = append(p.fills, fill)
	return nil
}

// Side 返回计划方向。
func (p *Plan) Side() book.Side {
	return p.side
}

// RequestedSize 返回请求数量。
func (p *Plan) RequestedSize() float64 {
	return p.requestedSize
}

// Fills 返回成交列表副本，保持插入顺序。
func (p *Plan) Fills() []Fill {
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

// FilledVolume 返回已成交总量。
func (p *Plan) FilledVolume() float64 {
	total := 0.0
	for _, f := range p.fills {
		total += f.Volume
	}
	return total
}

// TotalFees 返回全部成交的手续费之和: Σ volume * price * fee。
func (p *Plan) TotalFees() decimal.Decimal {
	total := decimal.Zero
	for _, f := range p.fills {
		fee := decimal.NewFromFloat(p.fees[f.Venue])
		amount := decimal.NewFromFloat(f.Volume).
			Mul(decimal.NewFromFloat(f.Price)).
			Mul(fee)
		total = total.Add(amount)
	}
	return total
}

// Total 返回买单的总成本（含费）或卖单的总所得（净费）。
func (p *Plan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, f := range p.fills {
		total = total.Add(decimal.NewFromFloat(f.Volume).Mul(p.effectivePrice(f)))
	}
	return total
}

// AverageEffectivePrice 返回按数量加权的平均有效价格，无成交时为0。
func (p *Plan) AverageEffectivePrice() decimal.Decimal {
	volume := p.FilledVolume()
	if volume == 0 {
		return decimal.Zero
	}
	return p.Total().Div(decimal.NewFromFloat(volume))
}

// FulfillmentPercent 返回成交比例（百分数），请求数量为0时视为100。
func (p *Plan) FulfillmentPercent() float64 {
	if p.requestedSize == 0 {
		return 100
	}
	return p.FilledVolume() / p.requestedSize * 100
}

func (p *Plan) effectivePrice(f Fill) decimal.Decimal {
	fee := decimal.NewFromFloat(p.fees[f.Venue])
	factor := decimal.NewFromInt(1)
	if p.side == book.Buy {
		factor = factor.Add(fee)
	} else {
		factor = factor.Sub(fee)
	}
	return decimal.NewFromFloat(f.Price).Mul(factor)
}

// Render 输出执行计划及汇总指标。
func (p *Plan) Render(w io.Writer) {
	fmt.Fprintln(w, "执行计划:")
	for _, f := range p.fills {
		fee := decimal.NewFromFloat(f.Volume).
			Mul(decimal.NewFromFloat(f.Price)).
			Mul(decimal.NewFromFloat(p.fees[f.Venue]))
		fmt.Fprintf(w, "  场所: %s  价格: %.2f  数量: %.5f  手续费: %s  有效价格: %s\n",
			f.Venue, f.Price, f.Volume, fee.StringFixed(4), p.effectivePrice(f).StringFixed(4))
	}

	fmt.Fprintln(w, "汇总:")
	fmt.Fprintf(w, "  总手续费: %s\n", p.TotalFees().StringFixed(4))
	if p.side == book.Buy {
		fmt.Fprintf(w, "  总成本(含费): %s\n", p.Total().StringFixed(4))
	} else {
		fmt.Fprintf(w, "  总所得(净费): %s\n", p.Total().StringFixed(4))
	}
	fmt.Fprintf(w, "  平均有效价格: %s\n", p.AverageEffectivePrice().StringFixed(4))
	fmt.Fprintf(w, "  成交比例: %.2f%%\n", p.FulfillmentPercent())
}
