package main

import "github.com/FireNirva/quants-fleet/pkg/types"

var dataCollectorCmd = serviceCommand(
	"data-collector",
	"Manage the market-data collector service",
	types.ServiceKindDataCollector,
	serviceCommandOpts{logs: true, startStop: true},
)
