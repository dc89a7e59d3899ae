// README: Common money value object used across modules.
package types

// Money amounts are whole units of Currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

const CurrencyUSD = "USD"

func USD(amount int64) Money {
	return Money{Amount: amount, Currency: CurrencyUSD}
}

func (m Money) Add(o Money) Money {
	cur := m.Currency
	if cur == "" {
		cur = o.Currency
	}
	return Money{Amount: m.Amount + o.Amount, Currency: cur}
}
