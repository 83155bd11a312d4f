package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authorizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signed_mint",
		Name:      "authorizations_total",
		Help:      "Signed mint authorization checks by outcome.",
	}, []string{"outcome"})

	mintsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signed_mint",
		Name:      "mints_total",
		Help:      "Tokens minted through accepted signatures.",
	})

	signaturesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signed_mint",
		Name:      "signatures_issued_total",
		Help:      "Mint approvals signed by the validator.",
	})
)

func recordAuthorization(result AuthorizationResult) {
	outcome := "accepted"
	if !result.Accepted() {
		outcome = result.Reason.String()
	}
	authorizationsTotal.WithLabelValues(outcome).Inc()
}
