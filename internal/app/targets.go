package app

import (
	"fmt"
	"path"
	"strings"
	"time"

	"snapkeep/internal/config"
	"snapkeep/internal/sk"
)

// TargetWarning is a configuration problem that degrades one target's run
// without stopping it.
type TargetWarning struct {
	Target string
	Err    error
}

// BuildTargets turns the configured targets into service targets with the
// global defaults applied. A non-empty only restricts the result to the named
// targets, keeping config order; naming an unknown target is an error.
//
// The snapshot floor comes from the target, then the global config, then
// sk.DefaultMinSnapshots. Filter rules are the global rules followed by the
// target's own. A target's retention table replaces the global one.
// Unparsable retention entries are reported as warnings and left out of the
// policy.
func BuildTargets(cfg *config.Config, only []string) ([]sk.Target, []TargetWarning, error) {
	wanted := map[string]bool{}
	for _, name := range only {
		wanted[name] = true
	}
	for name := range wanted {
		if !hasTarget(cfg, name) {
			return nil, nil, fmt.Errorf("unknown target %q", name)
		}
	}

	var targets []sk.Target
	var warnings []TargetWarning
	for _, tc := range cfg.Targets {
		if len(wanted) > 0 && !wanted[tc.Name] {
			continue
		}

		t := sk.Target{
			Name:         tc.Name,
			Source:       tc.Source,
			BackupDir:    tc.BackupDir,
			Interval:     tc.Interval,
			PreCheck:     tc.PreCheck,
			MinSnapshots: sk.DefaultMinSnapshots,
		}
		if t.BackupDir == "" {
			t.BackupDir = path.Join(cfg.BackupRoot, tc.Name)
		}
		if t.Interval == "" {
			t.Interval = cfg.Interval
		}
		switch {
		case tc.MinSnapshots != nil:
			t.MinSnapshots = *tc.MinSnapshots
		case cfg.MinSnapshots != nil:
			t.MinSnapshots = *cfg.MinSnapshots
		}
		t.FilterRules = append(append([]string{}, cfg.FilterRules...), tc.FilterRules...)

		retention := cfg.Retention
		if len(tc.Retention) > 0 {
			retention = tc.Retention
		}
		policy, errs := sk.ParsePolicy(retention)
		for _, err := range errs {
			warnings = append(warnings, TargetWarning{Target: tc.Name, Err: err})
		}
		t.Policy = policy

		targets = append(targets, t)
	}
	return targets, warnings, nil
}

func hasTarget(cfg *config.Config, name string) bool {
	for _, tc := range cfg.Targets {
		if tc.Name == name {
			return true
		}
	}
	return false
}

// nowLayouts are the accepted forms of a forced "now", tried in order after
// the snapshot name format.
var nowLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ResolveNow returns the run's logical timestamp: raw parsed as a snapshot
// name or a local date/time, or clock's time when raw is empty.
func ResolveNow(raw string, clock sk.Clock) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return clock.Now(), nil
	}
	if t, ok := sk.ParseTimestamp(raw); ok {
		return t, nil
	}
	for _, layout := range nowLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable --now value %q", raw)
}
