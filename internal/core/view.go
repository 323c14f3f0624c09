package core

import "sort"

// View is the aggregated, cross-account transaction list shown to the
// user: date descending, ties broken by (account ID, transaction ID)
// ascending so repeated aggregations of identical data are byte-for-byte
// identical.
type View struct {
	Transactions []Transaction
}

// Empty reports whether the view holds no transactions. An empty view is a
// valid terminal state (zero accounts, or all accounts empty), distinct
// from a failed refresh.
func (v View) Empty() bool {
	return len(v.Transactions) == 0
}

func (v View) Len() int {
	return len(v.Transactions)
}

// BuildView merges per-account fetch results into a single ordered view.
// It is a pure function: the outcome depends only on the multiset of
// transactions, never on fetch order or timing. Duplicate transaction IDs
// within the same account are dropped, first occurrence wins.
func BuildView(txs []Transaction) View {
	type key struct{ account, id string }
	seen := make(map[key]struct{}, len(txs))
	merged := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		k := key{tx.AccountID, tx.ID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, tx)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		return a.ID < b.ID
	})

	return View{Transactions: merged}
}
