package main

import "github.com/FireNirva/quants-fleet/pkg/types"

var freqtradeCmd = serviceCommand(
	"freqtrade",
	"Manage the freqtrade trading bot service",
	types.ServiceKindFreqtrade,
	serviceCommandOpts{logs: true},
)
