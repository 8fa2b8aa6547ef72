package domain

// AccountSummary is the running position of one account.
// Balance always equals TotalDeposits - TotalWithdrawals.
type AccountSummary struct {
	AccountNumber    string  `json:"account_number"`
	Balance          float64 `json:"balance"`
	TotalDeposits    float64 `json:"total_deposits"`
	TotalWithdrawals float64 `json:"total_withdrawals"`
}

// TypeStatistics accumulates amounts per transaction type.
type TypeStatistics struct {
	Type             string  `json:"transaction_type"`
	TotalAmount      float64 `json:"total_amount"`
	TransactionCount int     `json:"transaction_count"`
}

// Average returns TotalAmount / TransactionCount, or 0 when nothing was counted.
func (s TypeStatistics) Average() float64 {
	if s.TransactionCount == 0 {
		return 0
	}
	return s.TotalAmount / float64(s.TransactionCount)
}
