package repository

import (
	"context"
)

// An account's balance must equal the net of its completed deposits and withdrawals.
const getBalanceDrifts = `-- name: GetBalanceDrifts :many
SELECT a.id, a.balance, COALESCE(l.net, 0)::bigint AS ledger_net
FROM accounts a
LEFT JOIN (
    SELECT account_id,
           SUM(CASE kind WHEN 'deposit' THEN amount WHEN 'withdrawal' THEN -amount ELSE 0 END) AS net
    FROM transactions
    WHERE status = 'completed'
    GROUP BY account_id
) l ON l.account_id = a.id
WHERE a.balance <> COALESCE(l.net, 0)
ORDER BY a.id
`

type BalanceDrift struct {
	AccountID string
	Balance   int64
	LedgerNet int64
}

func (q *Queries) GetBalanceDrifts(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := q.db.Query(ctx, getBalanceDrifts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BalanceDrift
	for rows.Next() {
		var i BalanceDrift
		if err := rows.Scan(&i.AccountID, &i.Balance, &i.LedgerNet); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
