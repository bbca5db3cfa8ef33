package internaldefs

import (
	saasAuth "github.com/MrEthical07/saasAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   saasAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   saasAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: saasAuth.MetricLoginSuccess, Name: "saasauth_login_success_total", Help: "Successful logins."},
	{ID: saasAuth.MetricLoginFailure, Name: "saasauth_login_failure_total", Help: "Failed logins."},
	{ID: saasAuth.MetricTwoFactorRequired, Name: "saasauth_two_factor_required_total", Help: "Logins answered with a two-factor challenge."},
	{ID: saasAuth.MetricTwoFactorFailure, Name: "saasauth_two_factor_failure_total", Help: "Logins rejected for a wrong or reused two-factor code."},
	{ID: saasAuth.MetricRegisterSuccess, Name: "saasauth_register_success_total", Help: "Created accounts."},
	{ID: saasAuth.MetricRegisterRejected, Name: "saasauth_register_rejected_total", Help: "Rejected registrations."},
	{ID: saasAuth.MetricSessionCreated, Name: "saasauth_session_created_total", Help: "Issued sessions."},
	{ID: saasAuth.MetricSessionRefreshed, Name: "saasauth_session_refreshed_total", Help: "Refreshed sessions."},
	{ID: saasAuth.MetricSessionRejected, Name: "saasauth_session_rejected_total", Help: "Presented sessions that were unknown, expired or bound to another client."},
	{ID: saasAuth.MetricLogout, Name: "saasauth_logout_total", Help: "Single-session logouts."},
	{ID: saasAuth.MetricLogoutAll, Name: "saasauth_logout_all_total", Help: "Logout-all operations."},
	{ID: saasAuth.MetricPasswordResetRequest, Name: "saasauth_password_reset_request_total", Help: "Password reset mails requested."},
	{ID: saasAuth.MetricPasswordResetSuccess, Name: "saasauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: saasAuth.MetricPasswordResetFailure, Name: "saasauth_password_reset_failure_total", Help: "Failed password resets."},
	{ID: saasAuth.MetricEmailVerificationRequest, Name: "saasauth_email_verification_request_total", Help: "Verification mails requested."},
	{ID: saasAuth.MetricEmailVerificationSuccess, Name: "saasauth_email_verification_success_total", Help: "Confirmed email addresses."},
	{ID: saasAuth.MetricEmailVerificationFailure, Name: "saasauth_email_verification_failure_total", Help: "Failed email confirmations."},
	{ID: saasAuth.MetricMailFailure, Name: "saasauth_mail_failure_total", Help: "Mails the mailer could not deliver."},
	{ID: saasAuth.MetricUserUpdated, Name: "saasauth_user_updated_total", Help: "User record updates."},
	{ID: saasAuth.MetricTwoFactorEnabled, Name: "saasauth_two_factor_enabled_total", Help: "Confirmed two-factor enrollments."},
	{ID: saasAuth.MetricTwoFactorDisabled, Name: "saasauth_two_factor_disabled_total", Help: "Removed two-factor enrollments."},
	{ID: saasAuth.MetricPasswordUpgraded, Name: "saasauth_password_upgraded_total", Help: "Password hashes rewritten on login."},
	{ID: saasAuth.MetricAbuseBanned, Name: "saasauth_abuse_banned_total", Help: "IPs added to the blacklist."},
	{ID: saasAuth.MetricAbuseBlocked, Name: "saasauth_abuse_blocked_total", Help: "Requests refused from blacklisted IPs."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: saasAuth.MetricResolveLatency, Name: "saasauth_resolve_latency_seconds", Help: "Identity resolution latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix turns a bound into an instrument-name suffix.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
