// Package credits computes the refund owed for failed provider outcomes.
package credits

import "github.com/promptarena/arena/internal/domain"

// Reconcile refunds one credit per failed outcome, never refunding more
// than was used.
func Reconcile(used int, outcomes []domain.Outcome) domain.CreditInfo {
	refunded := 0
	for _, o := range outcomes {
		if !o.OK {
			refunded++
		}
	}
	if refunded > used {
		refunded = used
	}
	return domain.CreditInfo{
		Used:     used,
		Refunded: refunded,
		Net:      used - refunded,
	}
}
