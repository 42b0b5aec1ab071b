// Package config loads billing engine configuration from environment
// variables.
//
// Everything operational is tunable without a rebuild: server ports,
// database and Redis URLs, the sweep cron schedules, the renewal lookahead
// and pre-invoice windows, and the fee reminder cooldown. Defaults match
// production expectations; Validate catches the combinations that cannot
// work before the process binds a port.
package config
