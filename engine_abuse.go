package saasAuth

import "context"

// CheckRequest applies the scanner heuristic to an anonymous request.
// Authenticated callers are never checked. A request whose path matches an
// offending keyword bans its IP and reports AbuseBanned.
func (e *Engine) CheckRequest(ctx context.Context, ip, path string, authenticated bool) (AbuseVerdict, error) {
	if e.abuse == nil || authenticated {
		return AbuseAllowed, nil
	}

	banned, err := e.abuse.IsBlacklisted(ctx, ip)
	if err != nil {
		return AbuseAllowed, e.internal(ctx, "abuse_check", err)
	}
	if banned {
		e.metricInc(MetricAbuseBlocked)
		return AbuseBlacklisted, nil
	}

	if !e.abuse.IsOffendingPath(path) {
		return AbuseAllowed, nil
	}
	if _, err := e.abuse.Record(ctx, ip, path); err != nil {
		return AbuseAllowed, e.internal(ctx, "abuse_record", err)
	}
	e.metricInc(MetricAbuseBanned)
	e.emitAudit(ctx, auditEventAbuseBanned, "", "", ip, nil, map[string]string{"path": path})
	e.logger.WarnContext(ctx, "ip blacklisted", "ip", ip, "path", path)
	return AbuseBanned, nil
}

// Blacklist returns the recorded bans, oldest first.
func (e *Engine) Blacklist(ctx context.Context) ([]BlacklistEntry, error) {
	if e.abuse == nil {
		return nil, nil
	}
	list, err := e.abuse.List(ctx)
	if err != nil {
		return nil, e.internal(ctx, "abuse_list", err)
	}
	return list, nil
}
