package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	LeadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgw_leads_total",
			Help: "Leads lifecycle counter by stage",
		},
		[]string{"stage"}, // received|delivered|failed|redelivered
	)

	ProvisioningTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgw_provisioning_total",
			Help: "Google Sheets provisioning attempts by outcome",
		},
		[]string{"outcome"}, // persisted|malformed_state|token_exchange_failed|sheet_setup_failed|store_failed
	)

	TokenRenewalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgw_token_renewals_total",
			Help: "OAuth access token renewals by outcome",
		},
		[]string{"outcome"}, // renewed|revoked|failed|persist_failed
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors once; serve and worker may both call it.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			LeadsTotal,
			ProvisioningTotal,
			TokenRenewalsTotal,
		)
	})
}
